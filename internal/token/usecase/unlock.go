package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

type UnlockInput struct {
	Username       string `validate:"required,username"`
	IdempotencyKey string `validate:"omitempty,max=128"`
}

// Unlock resets the failed-login counter. A repeated request carrying the
// same idempotency key succeeds without a second audit entry.
func (s *Usecase) Unlock(ctx context.Context, in UnlockInput) error {
	ctx, span := s.startSpan(ctx, "Unlock")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	clm, err := s.authorizeAdmin(ctx)
	if err != nil {
		return err
	}

	run := func(ctx context.Context) error {
		return s.unlock(ctx, in.Username, clm.Username)
	}

	if in.IdempotencyKey == "" {
		return run(ctx)
	}

	err = s.idemp.Exec(ctx, "token:unlock:"+in.Username+":"+in.IdempotencyKey, run, idempotency.WithRetryFailed())
	switch {
	case err == nil, errors.Is(err, idempotency.ErrAlreadyCompleted):
		return nil
	case errors.Is(err, idempotency.ErrAlreadyInProgress):
		slog.WarnContext(ctx, "unlock already in progress", "username", in.Username)
		return goerror.NewBusiness("unlock already in progress", goerror.CodeConflict)
	}

	var gerr *goerror.Error
	if errors.As(err, &gerr) {
		return err
	}

	slog.ErrorContext(ctx, "failed to run idempotent unlock", "username", in.Username, "error", err)
	return goerror.NewServer(err)
}

func (s *Usecase) unlock(ctx context.Context, username, by string) error {
	err := s.repoDB.Unlock(ctx, username, entity.LogEntry{
		ID:       s.uid.Generate(),
		Username: username,
		Message:  entity.LogAccountUnlocked,
		LoggedAt: s.clock.Now(),
	})
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "credential not found", "username", username)
		return errCredentialNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to unlock credential", "username", username, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "credential unlocked", "username", username, "by", by)
	return nil
}
