package notification

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/gomotp/internal/notification/inbound"
	"github.com/shandysiswandi/gomotp/internal/notification/outbound/email"
	"github.com/shandysiswandi/gomotp/internal/notification/usecase"
	"github.com/shandysiswandi/gomotp/internal/pkg/clock"
	"github.com/shandysiswandi/gomotp/internal/pkg/config"
	"github.com/shandysiswandi/gomotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomotp/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/mail"
	"github.com/shandysiswandi/gomotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gomotp/internal/pkg/uid"
	"github.com/shandysiswandi/gomotp/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context
	Messaging   messaging.Messaging // nil disables consumers
	Mail        mail.Mail           // nil drops alerts
	Idempotency idempotency.Idempotency
	Config      config.Config
	Instrument  instrument.Instrumentation
	UUID        uid.StringID
	Clock       clock.Clocker
	Goroutine   *goroutine.Manager
	Validator   validator.Validator
}

func New(dep Dependency) error {
	repoMail := email.New(dep.Mail, dep.Instrument)

	uc := usecase.NewNotification(usecase.Dependency{
		Config:      dep.Config,
		Clock:       dep.Clock,
		Validator:   dep.Validator,
		Idempotency: dep.Idempotency,
		RepoMail:    repoMail,
		Instrument:  dep.Instrument,
	})

	if dep.Ctx == nil || dep.Messaging == nil {
		slog.Warn("notification consumers disabled, no messaging configured")
		return nil
	}

	started := inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	slog.Info("notification consumers started", "consumers", started)

	return nil
}
