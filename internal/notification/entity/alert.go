package entity

import "time"

type AlertKind int

const (
	AlertUnknown AlertKind = iota
	AlertAccountLocked
	AlertReplayDetected
)

func (k AlertKind) String() string {
	switch k {
	case AlertAccountLocked:
		return "account_locked"
	case AlertReplayDetected:
		return "replay_detected"
	default:
		return "unknown"
	}
}

// Alert is a security notice for administrators derived from a token event.
type Alert struct {
	EventID       string
	Kind          AlertKind
	Username      string
	Mode          string
	ClientIP      string
	InvalidLogins int32
	Threshold     int32
	OccurredAt    time.Time
}
