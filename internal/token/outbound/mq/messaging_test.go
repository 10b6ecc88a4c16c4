package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gomotp/internal/shared/event"
	"github.com/shandysiswandi/gomotp/internal/token/usecase"
)

var _ messaging.Messaging = (*recordingBroker)(nil)

type recordingBroker struct {
	topic string
	msg   messaging.Message
	err   error
}

func (r *recordingBroker) Close() error { return nil }

func (r *recordingBroker) Publish(_ context.Context, topic string, msg messaging.Message) error {
	r.topic, r.msg = topic, msg
	return r.err
}

func (r *recordingBroker) Subscribe(context.Context, string, messaging.Subscription, messaging.Handler) error {
	return nil
}

func TestMessaging(t *testing.T) {
	at := time.Unix(1000, 0).UTC()

	t.Run("LockedEvent", func(t *testing.T) {

		// Arrange
		broker := &recordingBroker{}
		m := NewMessaging(broker, instrument.NewNoop())
		ctx := instrument.SetCorrelationID(context.Background(), "cid-1")

		// Act
		err := m.PublishLocked(ctx, usecase.LockedEvent{EventID: "ev-1", Username: "alice", InvalidLogins: 5, Threshold: 5, OccurredAt: at})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if broker.topic != event.TokenLockedDestination || broker.msg.ID != "ev-1" || broker.msg.Key != "alice" {
			t.Fatalf("unexpected publish %s %+v", broker.topic, broker.msg)
		}
		if broker.msg.Header(keyOfCorrelationID) != "cid-1" {
			t.Fatalf("missing correlation id header")
		}
		var got event.TokenLockedMessage
		if err := json.Unmarshal(broker.msg.Body, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.InvalidLogins != 5 || !got.OccurredAt.Equal(at) {
			t.Fatalf("unexpected body %+v", got)
		}
	})

	t.Run("ReplayEventHasNoCode", func(t *testing.T) {

		// Arrange
		broker := &recordingBroker{}
		m := NewMessaging(broker, instrument.NewNoop())

		// Act
		err := m.PublishReplayDetected(context.Background(), usecase.ReplayDetectedEvent{EventID: "ev-2", Username: "alice", Mode: "plain", OccurredAt: at})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var raw map[string]any
		_ = json.Unmarshal(broker.msg.Body, &raw)
		if _, ok := raw["passphrase"]; ok {
			t.Fatalf("replay event leaked the code")
		}
	})

	t.Run("BrokerError", func(t *testing.T) {

		// Arrange
		broker := &recordingBroker{err: errors.New("broker down")}
		m := NewMessaging(broker, instrument.NewNoop())

		// Act
		err := m.PublishAuthenticated(context.Background(), usecase.AuthenticatedEvent{EventID: "ev-3", Username: "alice"})

		// Assert
		if err == nil {
			t.Fatalf("expected broker error")
		}
	})

	t.Run("NilClientDrops", func(t *testing.T) {

		// Arrange
		m := NewMessaging(nil, instrument.NewNoop())

		// Act
		err := m.PublishAuthenticated(context.Background(), usecase.AuthenticatedEvent{EventID: "ev-4"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
