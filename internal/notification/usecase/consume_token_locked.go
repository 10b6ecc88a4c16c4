package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomotp/internal/notification/entity"
)

type ConsumeTokenLockedInput struct {
	EventID       string `validate:"required"`
	Username      string `validate:"required"`
	InvalidLogins int32  `validate:"gte=0"`
	Threshold     int32  `validate:"gt=0"`
	OccurredAt    time.Time
}

func (s *Usecase) ConsumeTokenLocked(ctx context.Context, in ConsumeTokenLockedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeTokenLocked")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	return s.sendAlert(ctx, entity.Alert{
		EventID:       in.EventID,
		Kind:          entity.AlertAccountLocked,
		Username:      in.Username,
		InvalidLogins: in.InvalidLogins,
		Threshold:     in.Threshold,
		OccurredAt:    in.OccurredAt,
	})
}
