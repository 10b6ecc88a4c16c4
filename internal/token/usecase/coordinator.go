package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shandysiswandi/gomotp/internal/pkg/motp"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

// State is a step an attempt passes through.
type State int

const (
	StateReceived State = iota
	StateWindowComputed
	StateMatched
	StateNoMatch
	StateReplayChecked
	StateAccepted
	StateRejectedReplay
	StateRejectedNoMatch
	StateRejectedLocked
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateWindowComputed:
		return "window_computed"
	case StateMatched:
		return "matched"
	case StateNoMatch:
		return "no_match"
	case StateReplayChecked:
		return "replay_checked"
	case StateAccepted:
		return "accepted"
	case StateRejectedReplay:
		return "rejected_replay"
	case StateRejectedNoMatch:
		return "rejected_no_match"
	case StateRejectedLocked:
		return "rejected_locked"
	default:
		return "unknown"
	}
}

// OutcomeKind is the terminal result of an attempt.
type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota + 1
	OutcomeRejectedNoMatch
	OutcomeRejectedReplay
	OutcomeRejectedLocked
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejectedNoMatch:
		return "rejected_no_match"
	case OutcomeRejectedReplay:
		return "rejected_replay"
	case OutcomeRejectedLocked:
		return "rejected_locked"
	default:
		return "unknown"
	}
}

// Outcome is the result of Decide. OTP and Slot are set only when a candidate matched.
type Outcome struct {
	Kind  OutcomeKind
	OTP   string
	Slot  int64
	Trace []State

	// AuthenticatorResponse is the "S=..." string for an accepted MSCHAPv2 attempt.
	AuthenticatorResponse string
}

// Effects lists the writes the outcome requires.
func (o Outcome) Effects() entity.Effects {
	switch o.Kind {
	case OutcomeAccepted:
		return entity.Effects{Counter: entity.CounterReset, LogMessage: entity.LogSuccess, LogPassphrase: o.OTP}
	case OutcomeRejectedReplay:
		return entity.Effects{Counter: entity.CounterUnchanged, LogMessage: entity.LogReplayDetected, LogPassphrase: o.OTP}
	case OutcomeRejectedNoMatch:
		return entity.Effects{Counter: entity.CounterIncrement, LogMessage: entity.LogInvalidPass}
	default:
		return entity.Effects{Counter: entity.CounterUnchanged}
	}
}

// AttemptInput is what the client presented: PlainAttempt or MSCHAPv2Attempt.
type AttemptInput interface {
	Mode() string
}

// PlainAttempt carries the code as typed by the user.
type PlainAttempt struct {
	Passphrase string
}

func (PlainAttempt) Mode() string { return "plain" }

// MSCHAPv2Attempt carries an NT-Response computed with the code as password.
type MSCHAPv2Attempt struct {
	PeerChallenge []byte
	AuthChallenge []byte
	Response      []byte
}

func (MSCHAPv2Attempt) Mode() string { return "mschapv2" }

// Coordinator decides attempts. It never writes; its only read is the replay lookup.
type Coordinator struct {
	Window           motp.Window
	Guard            *ReplayGuard
	LockoutThreshold int32
}

func (c *Coordinator) Decide(ctx context.Context, cred entity.Credential, in AttemptInput, now time.Time) (Outcome, error) {
	trace := []State{StateReceived}

	if cred.Locked(c.LockoutThreshold) {
		return Outcome{Kind: OutcomeRejectedLocked, Trace: append(trace, StateRejectedLocked)}, nil
	}

	cands, err := c.Window.Generate(cred.Secret, cred.Pin, now)
	if err != nil {
		return Outcome{}, err
	}
	trace = append(trace, StateWindowComputed)

	var (
		cand motp.Candidate
		ok   bool
	)
	switch in := in.(type) {
	case PlainAttempt:
		cand, ok = motp.MatchPlain(cands, in.Passphrase)
	case MSCHAPv2Attempt:
		cand, ok, err = motp.MatchMSCHAPv2(cands, in.PeerChallenge, in.AuthChallenge, cred.Username, in.Response)
		if err != nil {
			return Outcome{}, err
		}
	default:
		return Outcome{}, fmt.Errorf("%w: unsupported attempt %T", motp.ErrInvalidInput, in)
	}

	if !ok {
		trace = append(trace, StateNoMatch, StateRejectedNoMatch)
		return Outcome{Kind: OutcomeRejectedNoMatch, Trace: trace}, nil
	}
	trace = append(trace, StateMatched)

	replay, err := c.Guard.IsReplay(ctx, cred.Username, cand.Value, now)
	if err != nil {
		return Outcome{}, err
	}
	trace = append(trace, StateReplayChecked)

	if replay {
		trace = append(trace, StateRejectedReplay)
		return Outcome{Kind: OutcomeRejectedReplay, OTP: cand.Value, Slot: cand.Slot, Trace: trace}, nil
	}

	out := Outcome{Kind: OutcomeAccepted, OTP: cand.Value, Slot: cand.Slot, Trace: append(trace, StateAccepted)}
	if m, isMSCHAP := in.(MSCHAPv2Attempt); isMSCHAP {
		out.AuthenticatorResponse, err = motp.AuthenticatorResponse(cand.Value, m.Response, m.PeerChallenge, m.AuthChallenge, cred.Username)
		if err != nil {
			return Outcome{}, err
		}
	}

	return out, nil
}
