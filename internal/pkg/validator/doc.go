// Package validator validates request and domain structs with
// go-playground/validator v10 and reports failures as a snake_case
// field-to-message map.
package validator

// Validator validates a struct using its `validate` tags.
type Validator interface {
	Validate(data any) error
}
