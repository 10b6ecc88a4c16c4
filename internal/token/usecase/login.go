package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
)

type (
	LoginInput struct {
		Username   string `validate:"required,username"`
		Passphrase string `validate:"required,max=64"`
		ClientIP   string
	}

	LoginOutput struct {
		AccessToken string
		ExpiresAt   time.Time
	}
)

// Login verifies a plain code through the same path as Authenticate and
// issues a session token for the management API.
func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	res, err := s.authenticate(ctx, in.Username, PlainAttempt{Passphrase: in.Passphrase}, in.ClientIP)
	if err != nil {
		return nil, err
	}
	if err := res.Outcome.Kind.Err(); err != nil {
		return nil, err
	}

	token, exp, err := s.jwt.Generate(in.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access token", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &LoginOutput{AccessToken: token, ExpiresAt: exp}, nil
}
