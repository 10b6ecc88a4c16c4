package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gomotp/internal/shared/event"
	"github.com/shandysiswandi/gomotp/internal/token/usecase"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

// Messaging publishes token events. A nil client drops every event.
type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishAuthenticated(ctx context.Context, msg usecase.AuthenticatedEvent) error {
	return m.publish(ctx, "PublishAuthenticated", event.TokenAuthenticatedDestination, msg.EventID, msg.Username, event.TokenAuthenticatedMessage{
		EventID:    msg.EventID,
		Username:   msg.Username,
		Mode:       msg.Mode,
		Slot:       msg.Slot,
		OccurredAt: msg.OccurredAt,
	})
}

func (m *Messaging) PublishReplayDetected(ctx context.Context, msg usecase.ReplayDetectedEvent) error {
	return m.publish(ctx, "PublishReplayDetected", event.TokenReplayDetectedDestination, msg.EventID, msg.Username, event.TokenReplayDetectedMessage{
		EventID:    msg.EventID,
		Username:   msg.Username,
		Mode:       msg.Mode,
		ClientIP:   msg.ClientIP,
		OccurredAt: msg.OccurredAt,
	})
}

func (m *Messaging) PublishLocked(ctx context.Context, msg usecase.LockedEvent) error {
	return m.publish(ctx, "PublishLocked", event.TokenLockedDestination, msg.EventID, msg.Username, event.TokenLockedMessage{
		EventID:       msg.EventID,
		Username:      msg.Username,
		InvalidLogins: msg.InvalidLogins,
		Threshold:     msg.Threshold,
		OccurredAt:    msg.OccurredAt,
	})
}

// publish keys every message by username so one user's events stay ordered
// on brokers that partition by key.
func (m *Messaging) publish(ctx context.Context, span, topic, id, username string, payload any) error {
	if m.client == nil {
		return nil
	}

	ctx, sp := m.ins.Tracer("token.outbound.mq").Start(ctx, span)
	defer sp.End()

	body, err := json.Marshal(payload)
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := m.client.Publish(ctx, topic, messaging.Message{
		ID:      id,
		Key:     username,
		Body:    body,
		Headers: map[string]string{keyOfCorrelationID: instrument.GetCorrelationID(ctx)},
	}); err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
