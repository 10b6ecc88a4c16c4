// Package uid generates identifiers: snowflake numbers for audit rows and
// UUIDs for correlation and token IDs.
package uid

// NumberID generates unique, roughly time-ordered integers.
type NumberID interface {
	Generate() int64
}

// StringID generates unique strings.
type StringID interface {
	Generate() string
}
