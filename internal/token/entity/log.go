package entity

import "time"

// Audit log messages.
const (
	LogSuccess         = "Success"
	LogReplayDetected  = "Replay detected"
	LogInvalidPass     = "Invalid passphrase"
	LogAccountUnlocked = "Account unlocked"
	LogAccountLocked   = "Account locked"
)

// LogEntry is one append-only audit row.
type LogEntry struct {
	ID         int64
	Username   string
	Passphrase string
	Message    string
	LoggedAt   time.Time
}

// LogFilter selects audit rows. Empty strings and zero times do not filter.
// After and Before are exclusive bounds on LoggedAt.
type LogFilter struct {
	Username   string
	Passphrase string
	Message    string
	After      time.Time
	Before     time.Time
	Offset     int32
	Limit      int32
}
