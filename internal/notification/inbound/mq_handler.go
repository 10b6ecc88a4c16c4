package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/gomotp/internal/notification/usecase"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gomotp/internal/pkg/uid"
	"github.com/shandysiswandi/gomotp/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cid := msg.Header(keyOfCorrelationID); cid != "" {
		return instrument.SetCorrelationID(ctx, cid)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// eventID prefers the payload ID and falls back to the transport message ID.
func eventID(payloadID string, msg messaging.Message) string {
	if payloadID != "" {
		return payloadID
	}
	return msg.ID
}

func (h *MQHandler) TokenLockedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "TokenLockedNotification")
	defer span.End()

	slog.InfoContext(ctx, "consume: token locked notification", "message_id", msg.ID)

	var payload event.TokenLockedMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of token locked notification", "msg_body", string(msg.Body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeTokenLocked(ctx, usecase.ConsumeTokenLockedInput{
		EventID:       eventID(payload.EventID, msg),
		Username:      payload.Username,
		InvalidLogins: payload.InvalidLogins,
		Threshold:     payload.Threshold,
		OccurredAt:    payload.OccurredAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume token locked", "message_id", msg.ID, "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) TokenReplayDetectedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "TokenReplayDetectedNotification")
	defer span.End()

	slog.InfoContext(ctx, "consume: token replay detected notification", "message_id", msg.ID)

	var payload event.TokenReplayDetectedMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of token replay detected notification", "msg_body", string(msg.Body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeTokenReplayDetected(ctx, usecase.ConsumeTokenReplayDetectedInput{
		EventID:    eventID(payload.EventID, msg),
		Username:   payload.Username,
		Mode:       payload.Mode,
		ClientIP:   payload.ClientIP,
		OccurredAt: payload.OccurredAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume token replay detected", "message_id", msg.ID, "error", err)
		return err
	}

	return nil
}
