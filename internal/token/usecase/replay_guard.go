package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

// ReplayHorizon is how long a successfully used code stays unusable.
// It covers the whole accepted window of 37 ten-second slots.
const ReplayHorizon = 360 * time.Second

type logCounter interface {
	CountLogs(ctx context.Context, filter entity.LogFilter) (int64, error)
}

// ReplayGuard rejects codes that already produced a successful login.
type ReplayGuard struct {
	logs    logCounter
	horizon time.Duration
}

func NewReplayGuard(logs logCounter) *ReplayGuard {
	return &ReplayGuard{logs: logs, horizon: ReplayHorizon}
}

// IsReplay reports whether otp was accepted for username strictly after
// asOf minus the horizon. Store errors are returned, never read as "no replay".
func (g *ReplayGuard) IsReplay(ctx context.Context, username, otp string, asOf time.Time) (bool, error) {
	n, err := g.logs.CountLogs(ctx, entity.LogFilter{
		Username:   username,
		Passphrase: otp,
		Message:    entity.LogSuccess,
		After:      asOf.Add(-g.horizon),
	})
	if err != nil {
		return false, fmt.Errorf("count recent successes: %w", err)
	}

	return n > 0, nil
}
