package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/pkg/motp"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	errInvalidPassphrase = goerror.NewBusiness("invalid username or passphrase", goerror.CodeUnauthorized)
	errPassphraseUsed    = goerror.NewBusiness("passphrase already used", goerror.CodeUnauthorized)
	errAccountLocked     = goerror.NewBusiness("account is locked", goerror.CodeForbidden)
)

// Err maps a rejection to the error shown to the client. It is nil for OutcomeAccepted.
func (k OutcomeKind) Err() error {
	switch k {
	case OutcomeAccepted:
		return nil
	case OutcomeRejectedReplay:
		return errPassphraseUsed
	case OutcomeRejectedLocked:
		return errAccountLocked
	default:
		return errInvalidPassphrase
	}
}

type (
	// AuthenticateInput selects MSCHAPv2 when Response is set, plain mode otherwise.
	// Challenges and response are hex encoded.
	AuthenticateInput struct {
		Username      string `validate:"required,username"`
		Passphrase    string `validate:"required_without=Response,max=64"`
		PeerChallenge string `validate:"required_with=Response,omitempty,len=32,hexadecimal"`
		AuthChallenge string `validate:"required_with=Response,omitempty,len=32,hexadecimal"`
		Response      string `validate:"omitempty,len=48,hexadecimal"`
		ClientIP      string
	}

	AuthenticateOutput struct {
		Username              string
		Mode                  string
		Outcome               Outcome
		InvalidLogins         int32
		AuthenticatorResponse string
	}
)

func (in AuthenticateInput) attempt() (AttemptInput, error) {
	if in.Response == "" {
		return PlainAttempt{Passphrase: in.Passphrase}, nil
	}

	peer, err := hex.DecodeString(in.PeerChallenge)
	if err != nil {
		return nil, err
	}
	auth, err := hex.DecodeString(in.AuthChallenge)
	if err != nil {
		return nil, err
	}
	resp, err := hex.DecodeString(in.Response)
	if err != nil {
		return nil, err
	}

	return MSCHAPv2Attempt{PeerChallenge: peer, AuthChallenge: auth, Response: resp}, nil
}

// Authenticate verifies one attempt and commits its effects. Rejections are
// reported through the outcome, not as errors; see OutcomeKind.Err.
func (s *Usecase) Authenticate(ctx context.Context, in AuthenticateInput) (*AuthenticateOutput, error) {
	ctx, span := s.startSpan(ctx, "Authenticate")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	attempt, err := in.attempt()
	if err != nil {
		return nil, goerror.NewInvalidInput(nil, "response", "must be hexadecimal")
	}

	return s.authenticate(ctx, in.Username, attempt, in.ClientIP)
}

func (s *Usecase) authenticate(ctx context.Context, username string, attempt AttemptInput, clientIP string) (*AuthenticateOutput, error) {
	cred, err := s.repoDB.GetCredential(ctx, username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "credential not found", "username", username)
		return nil, errInvalidPassphrase
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get credential", "username", username, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !cred.HasToken() {
		slog.WarnContext(ctx, "credential has no token enrolled", "username", username)
		return nil, errInvalidPassphrase
	}

	now := s.clock.Now()
	coord := s.coordinator()

	out, err := coord.Decide(ctx, *cred, attempt, now)
	if errors.Is(err, motp.ErrInvalidWindow) {
		slog.ErrorContext(ctx, "token window is misconfigured", "drift", coord.Window.Drift, "period", coord.Window.Period)
		return nil, goerror.NewServer(err)
	}
	if errors.Is(err, motp.ErrInvalidInput) {
		slog.WarnContext(ctx, "attempt rejected as invalid input", "username", username, "error", err)
		return nil, goerror.NewInvalidInput(nil, "response", err.Error())
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to decide attempt", "username", username, "error", err)
		return nil, goerror.NewServer(err)
	}

	result := entity.CommitResult{InvalidLogins: cred.InvalidLogins}
	eff := out.Effects()
	switch {
	case eff.LogMessage == "":
	case eff.Counter == entity.CounterUnchanged:
		err = s.repoDB.AppendLog(ctx, s.logEntry(username, eff, now))
	default:
		result, err = s.repoDB.CommitAttempt(ctx, s.attemptCommit(username, eff, coord.LockoutThreshold, now))
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to commit attempt", "username", username, "outcome", out.Kind.String(), "error", err)
		return nil, goerror.NewServer(err)
	}

	s.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", out.Kind.String()),
		attribute.String("mode", attempt.Mode()),
	))

	slog.InfoContext(ctx, "authentication attempt decided",
		"username", username,
		"mode", attempt.Mode(),
		"outcome", out.Kind.String(),
		"invalid_logins", result.InvalidLogins,
	)

	s.publishOutcome(ctx, username, attempt.Mode(), clientIP, out, result, coord.LockoutThreshold, now)

	return &AuthenticateOutput{
		Username:              username,
		Mode:                  attempt.Mode(),
		Outcome:               out,
		InvalidLogins:         result.InvalidLogins,
		AuthenticatorResponse: out.AuthenticatorResponse,
	}, nil
}

func (s *Usecase) logEntry(username string, eff entity.Effects, now time.Time) entity.LogEntry {
	return entity.LogEntry{
		ID:         s.uid.Generate(),
		Username:   username,
		Passphrase: eff.LogPassphrase,
		Message:    eff.LogMessage,
		LoggedAt:   now,
	}
}

func (s *Usecase) attemptCommit(username string, eff entity.Effects, threshold int32, now time.Time) entity.AttemptCommit {
	commit := entity.AttemptCommit{
		Counter: eff.Counter,
		Entry:   s.logEntry(username, eff, now),
	}

	if eff.Counter == entity.CounterIncrement && threshold > 0 {
		commit.LockThreshold = threshold
		commit.LockEntry = entity.LogEntry{
			ID:       s.uid.Generate(),
			Username: username,
			Message:  entity.LogAccountLocked,
			LoggedAt: now,
		}
	}

	return commit
}

func (s *Usecase) publishOutcome(ctx context.Context, username, mode, clientIP string, out Outcome, res entity.CommitResult, threshold int32, now time.Time) {
	switch out.Kind {
	case OutcomeAccepted:
		ev := AuthenticatedEvent{EventID: s.uuid.Generate(), Username: username, Mode: mode, Slot: out.Slot, OccurredAt: now}
		s.publish(ctx, "token_authenticated", func(ctx context.Context) error {
			return s.repoMessaging.PublishAuthenticated(ctx, ev)
		})

	case OutcomeRejectedReplay:
		ev := ReplayDetectedEvent{EventID: s.uuid.Generate(), Username: username, Mode: mode, ClientIP: clientIP, OccurredAt: now}
		s.publish(ctx, "token_replay_detected", func(ctx context.Context) error {
			return s.repoMessaging.PublishReplayDetected(ctx, ev)
		})

	case OutcomeRejectedNoMatch:
		if !res.LockedNow {
			return
		}
		ev := LockedEvent{EventID: s.uuid.Generate(), Username: username, InvalidLogins: res.InvalidLogins, Threshold: threshold, OccurredAt: now}
		s.publish(ctx, "token_locked", func(ctx context.Context) error {
			return s.repoMessaging.PublishLocked(ctx, ev)
		})
	}
}

// publish sends an event in the background with a few retries. Failures are
// logged only; the attempt result is already committed.
func (s *Usecase) publish(ctx context.Context, name string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)

	scheduled := s.goroutine.Go(ctx, func(ctx context.Context) error {
		b := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			if err := fn(ctx); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to publish event", "event", name, "error", err)
		}
		return nil
	})
	if !scheduled {
		slog.WarnContext(ctx, "event publish not scheduled", "event", name)
	}
}
