package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { rdb.Close() })

	return rdb
}

func TestStateTracker(t *testing.T) {

	rdb := newRedis(t)
	tracker := New(rdb)
	ctx := context.Background()

	t.Run("RunsOnce", func(t *testing.T) {

		// Arrange
		calls := 0
		fn := func(context.Context) error { calls++; return nil }

		// Act
		first := tracker.Exec(ctx, "unlock:alice:k1", fn)
		second := tracker.Exec(ctx, "unlock:alice:k1", fn)

		// Assert
		if first != nil {
			t.Fatalf("first run: %v", first)
		}
		if !errors.Is(second, ErrAlreadyCompleted) {
			t.Fatalf("expected ErrAlreadyCompleted, got %v", second)
		}
		if calls != 1 {
			t.Fatalf("expected 1 call, got %d", calls)
		}
	})

	t.Run("FailedRunIsRemembered", func(t *testing.T) {

		// Arrange
		boom := errors.New("boom")
		fail := func(context.Context) error { return boom }

		// Act
		first := tracker.Exec(ctx, "event:42", fail)
		second := tracker.Exec(ctx, "event:42", func(context.Context) error { return nil })
		third := tracker.Exec(ctx, "event:42", func(context.Context) error { return nil }, WithRetryFailed())

		// Assert
		if !errors.Is(first, boom) {
			t.Fatalf("expected boom, got %v", first)
		}
		if !errors.Is(second, ErrAlreadyFailed) {
			t.Fatalf("expected ErrAlreadyFailed, got %v", second)
		}
		if third != nil {
			t.Fatalf("expected retry to succeed, got %v", third)
		}
	})

	t.Run("InProgress", func(t *testing.T) {

		// Arrange
		state, err := tracker.Acquire(ctx, "busy", defaultLockDuration)
		if err != nil || state != StateNone {
			t.Fatalf("acquire: state=%s err=%v", state, err)
		}

		// Act
		err = tracker.Exec(ctx, "busy", func(context.Context) error { return nil })

		// Assert
		if !errors.Is(err, ErrAlreadyInProgress) {
			t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
		}
	})
}
