package config

import (
	"io"
	"time"
)

// TimeConfig reads integer settings as durations of a fixed unit.
type TimeConfig interface {
	// GetSecond reads key as a number of seconds.
	GetSecond(key string) time.Duration

	// GetMinute reads key as a number of minutes.
	GetMinute(key string) time.Duration
}

// Config defines a set of methods for retrieving configuration values of various types.
// Missing keys and unconvertible values yield the zero value of the requested type.
type Config interface {
	io.Closer
	TimeConfig

	GetBool(key string) bool
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetFloat64(key string) float64
	GetString(key string) string

	// GetBinary decodes a base64 encoded value.
	GetBinary(key string) []byte

	// GetArray reads a value stored as <element1>,<element2>,...
	// Elements are trimmed and empty elements are dropped.
	GetArray(key string) []string

	// GetMap reads a value stored as <key1>:<value1>,<key2>:<value2>,...
	GetMap(key string) map[string]string
}
