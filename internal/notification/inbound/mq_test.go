package inbound

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gomotp/internal/notification/usecase"
	"github.com/shandysiswandi/gomotp/internal/pkg/config"
	"github.com/shandysiswandi/gomotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gomotp/internal/shared/event"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type fakeUC struct {
	locked    []usecase.ConsumeTokenLockedInput
	replay    []usecase.ConsumeTokenReplayDetectedInput
	lockedCID string
	err       error
}

func (f *fakeUC) ConsumeTokenLocked(ctx context.Context, in usecase.ConsumeTokenLockedInput) error {
	f.locked = append(f.locked, in)
	f.lockedCID = instrument.GetCorrelationID(ctx)
	return f.err
}

func (f *fakeUC) ConsumeTokenReplayDetected(_ context.Context, in usecase.ConsumeTokenReplayDetectedInput) error {
	f.replay = append(f.replay, in)
	return f.err
}

// blockingBroker records subscriptions and blocks until ctx is done.
type blockingBroker struct {
	mu   sync.Mutex
	subs map[string]messaging.Subscription
}

func (b *blockingBroker) Close() error { return nil }

func (b *blockingBroker) Publish(context.Context, string, messaging.Message) error { return nil }

func (b *blockingBroker) Subscribe(ctx context.Context, topic string, sub messaging.Subscription, _ messaging.Handler) error {
	b.mu.Lock()
	b.subs[topic] = sub
	b.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

func newHandler(uc uc) *MQHandler {
	return &MQHandler{uc: uc, uuid: fixedID("generated"), ins: instrument.NewNoop()}
}

func TestMQHandler_TokenLockedNotification(t *testing.T) {

	t.Run("ParsesPayloadAndCorrelation", func(t *testing.T) {

		// Arrange
		uc := &fakeUC{}
		h := newHandler(uc)
		msg := messaging.Message{
			ID:      "msg-1",
			Headers: map[string]string{keyOfCorrelationID: "cid-9"},
			Body:    []byte(`{"event_id":"evt-1","username":"alice","invalid_logins":3,"threshold":3,"occurred_at":"1970-01-01T00:16:40Z"}`),
		}

		// Act
		err := h.TokenLockedNotification(context.Background(), msg)

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := usecase.ConsumeTokenLockedInput{
			EventID:       "evt-1",
			Username:      "alice",
			InvalidLogins: 3,
			Threshold:     3,
			OccurredAt:    time.Unix(1000, 0).UTC(),
		}
		if len(uc.locked) != 1 || uc.locked[0] != want {
			t.Fatalf("unexpected input %+v", uc.locked)
		}
		if uc.lockedCID != "cid-9" {
			t.Fatalf("expected cid-9, got %q", uc.lockedCID)
		}
	})

	t.Run("FallsBackToMessageIDAndGeneratedCorrelation", func(t *testing.T) {

		// Arrange
		uc := &fakeUC{}
		h := newHandler(uc)
		msg := messaging.Message{ID: "msg-2", Body: []byte(`{"username":"alice","threshold":3}`)}

		// Act
		err := h.TokenLockedNotification(context.Background(), msg)

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if uc.locked[0].EventID != "msg-2" {
			t.Fatalf("expected msg-2, got %q", uc.locked[0].EventID)
		}
		if uc.lockedCID != "generated" {
			t.Fatalf("expected generated, got %q", uc.lockedCID)
		}
	})

	t.Run("MalformedBodyIsAcked", func(t *testing.T) {

		// Arrange
		uc := &fakeUC{}
		h := newHandler(uc)

		// Act
		err := h.TokenLockedNotification(context.Background(), messaging.Message{Body: []byte(`{`)})

		// Assert
		if err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if len(uc.locked) != 0 {
			t.Fatal("usecase must not be called")
		}
	})

	t.Run("UsecaseErrorRequestsRedelivery", func(t *testing.T) {

		// Arrange
		uc := &fakeUC{err: errors.New("smtp down")}
		h := newHandler(uc)

		// Act
		err := h.TokenLockedNotification(context.Background(), messaging.Message{Body: []byte(`{"event_id":"e"}`)})

		// Assert
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestMQHandler_TokenReplayDetectedNotification(t *testing.T) {

	// Arrange
	uc := &fakeUC{}
	h := newHandler(uc)
	msg := messaging.Message{Body: []byte(`{"event_id":"evt-3","username":"bob","mode":"plain","client_ip":"10.0.0.7"}`)}

	// Act
	err := h.TokenReplayDetectedNotification(context.Background(), msg)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(uc.replay) != 1 || uc.replay[0].ClientIP != "10.0.0.7" || uc.replay[0].Mode != "plain" {
		t.Fatalf("unexpected input %+v", uc.replay)
	}
}

func TestRegisterMQConsumer(t *testing.T) {

	t.Run("StartsOnlyEnabledConsumers", func(t *testing.T) {

		// Arrange
		cfg, err := config.NewViperFromBytes("yaml", []byte(`
modules:
  notification:
    concurrency: 4
    consumer_names: "token_locked_notification"
`))
		if err != nil {
			t.Fatalf("config: %v", err)
		}
		broker := &blockingBroker{subs: map[string]messaging.Subscription{}}
		mgr := goroutine.NewManager(4)
		ctx, cancel := context.WithCancel(context.Background())

		// Act
		started := RegisterMQConsumer(ctx, cfg, mgr, broker, fixedID("x"), &fakeUC{}, instrument.NewNoop())
		cancel()
		waitErr := mgr.Wait()

		// Assert
		if waitErr != nil {
			t.Fatalf("unexpected wait error: %v", waitErr)
		}
		sort.Strings(started)
		if len(started) != 1 || started[0] != event.TokenLockedConsumerNotification {
			t.Fatalf("unexpected started %v", started)
		}
	})

	t.Run("SubscriptionCarriesNameAndConcurrency", func(t *testing.T) {

		// Arrange
		cfg, err := config.NewViperFromBytes("yaml", []byte(`
modules:
  notification:
    concurrency: 4
    consumer_names: "token_locked_notification,token_replay_detected_notification"
`))
		if err != nil {
			t.Fatalf("config: %v", err)
		}
		broker := &blockingBroker{subs: map[string]messaging.Subscription{}}
		mgr := goroutine.NewManager(4)
		ctx, cancel := context.WithCancel(context.Background())

		// Act
		started := RegisterMQConsumer(ctx, cfg, mgr, broker, fixedID("x"), &fakeUC{}, instrument.NewNoop())
		deadline := time.Now().Add(2 * time.Second)
		for {
			broker.mu.Lock()
			n := len(broker.subs)
			broker.mu.Unlock()
			if n == 2 || time.Now().After(deadline) {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		_ = mgr.Wait()

		// Assert
		if len(started) != 2 {
			t.Fatalf("expected two consumers, got %v", started)
		}
		sub := broker.subs[event.TokenReplayDetectedDestination]
		if sub.Name != event.TokenReplayDetectedConsumerNotification || sub.Concurrency != 4 {
			t.Fatalf("unexpected subscription %+v", sub)
		}
	})
}
