package inbound

import (
	"context"

	"github.com/shandysiswandi/gomotp/internal/notification/usecase"
)

type uc interface {
	ConsumeTokenLocked(ctx context.Context, in usecase.ConsumeTokenLockedInput) error
	ConsumeTokenReplayDetected(ctx context.Context, in usecase.ConsumeTokenReplayDetectedInput) error
}
