package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomotp/internal/notification/entity"
)

type ConsumeTokenReplayDetectedInput struct {
	EventID    string `validate:"required"`
	Username   string `validate:"required"`
	Mode       string `validate:"required,oneof=plain mschapv2"`
	ClientIP   string `validate:"omitempty,ip"`
	OccurredAt time.Time
}

func (s *Usecase) ConsumeTokenReplayDetected(ctx context.Context, in ConsumeTokenReplayDetectedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeTokenReplayDetected")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	return s.sendAlert(ctx, entity.Alert{
		EventID:    in.EventID,
		Kind:       entity.AlertReplayDetected,
		Username:   in.Username,
		Mode:       in.Mode,
		ClientIP:   in.ClientIP,
		OccurredAt: in.OccurredAt,
	})
}
