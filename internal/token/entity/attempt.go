package entity

// CounterEffect is how an attempt changes the failed-login counter.
type CounterEffect int

const (
	CounterUnchanged CounterEffect = iota
	CounterReset
	CounterIncrement
)

func (c CounterEffect) String() string {
	switch c {
	case CounterReset:
		return "reset"
	case CounterIncrement:
		return "increment"
	default:
		return "unchanged"
	}
}

// Effects is what an attempt outcome requires to be persisted.
// An empty LogMessage means nothing is logged.
type Effects struct {
	Counter       CounterEffect
	LogMessage    string
	LogPassphrase string
}

// AttemptCommit is the write set of one attempt, applied in a single transaction.
type AttemptCommit struct {
	Entry   LogEntry
	Counter CounterEffect

	// LockEntry is appended when an increment makes the counter equal LockThreshold.
	LockThreshold int32
	LockEntry     LogEntry
}

// CommitResult reports the counter after an attempt was committed.
type CommitResult struct {
	InvalidLogins int32
	LockedNow     bool
}
