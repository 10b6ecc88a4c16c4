package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/gomotp/internal/pkg/config"
	"github.com/shandysiswandi/gomotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gomotp/internal/pkg/uid"
	"github.com/shandysiswandi/gomotp/internal/shared/event"
)

// RegisterMQConsumer starts one background subscriber per consumer listed in
// modules.notification.consumer_names. It returns the names that were started.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) []string {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.notification.consumer_names")
	concurrency := cfg.GetInt("modules.notification.concurrency")

	var consumers = []struct {
		name    string // also the durable subscription name on every broker
		topic   string // destination where publisher sent message
		handler messaging.Handler
	}{
		{
			name:    event.TokenLockedConsumerNotification,
			topic:   event.TokenLockedDestination,
			handler: mqHandler.TokenLockedNotification,
		},
		{
			name:    event.TokenReplayDetectedConsumerNotification,
			topic:   event.TokenReplayDetectedDestination,
			handler: mqHandler.TokenReplayDetectedNotification,
		},
	}

	var started []string
	for _, consumer := range consumers {
		if !slices.Contains(enableConsumerNames, consumer.name) {
			continue
		}

		ok := routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
			return messenger.Subscribe(pCtx, consumer.topic, messaging.Subscription{
				Name:        consumer.name,
				Concurrency: concurrency,
			}, consumer.handler)
		})
		if !ok {
			slog.ErrorContext(ctx, "failed to start consumer", "consumer", consumer.name)
			continue
		}
		started = append(started, consumer.name)
	}

	return started
}
