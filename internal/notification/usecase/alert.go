package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomotp/internal/notification/entity"
	"github.com/shandysiswandi/gomotp/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomotp/internal/pkg/mail"
)

type alertTemplate struct {
	subject string
	body    string
}

var alertTemplates = map[entity.AlertKind]alertTemplate{
	entity.AlertAccountLocked: {
		subject: "[{{.company_name}}] Account locked: {{.username}}",
		body: `<p>The one-time passphrase account <b>{{.username}}</b> was locked at {{.occurred_at}}
after {{.invalid_logins}} failed attempts (threshold {{.threshold}}).</p>
<p>An administrator must unlock the account before it can authenticate again.</p>
<p>&copy; {{.year}} {{.company_name}}</p>`,
	},
	entity.AlertReplayDetected: {
		subject: "[{{.company_name}}] Passphrase replay for {{.username}}",
		body: `<p>A passphrase already accepted for <b>{{.username}}</b> was presented again
at {{.occurred_at}} ({{.mode}} mode{{if .client_ip}}, from {{.client_ip}}{{end}}).</p>
<p>The attempt was rejected. Repeated notices may mean the passphrase was intercepted.</p>
<p>&copy; {{.year}} {{.company_name}}</p>`,
	},
}

// sendAlert mails a to every configured recipient once per event ID.
func (s *Usecase) sendAlert(ctx context.Context, a entity.Alert) error {
	to := s.recipients()
	if len(to) == 0 {
		slog.WarnContext(ctx, "no alert recipients configured, alert dropped", "kind", a.Kind.String(), "event_id", a.EventID)
		return nil
	}

	tpl, ok := alertTemplates[a.Kind]
	if !ok {
		slog.ErrorContext(ctx, "no template for alert kind", "kind", a.Kind.String(), "event_id", a.EventID)
		return nil
	}

	data := s.baseTemplateData()
	data["username"] = a.Username
	data["mode"] = a.Mode
	data["client_ip"] = a.ClientIP
	data["invalid_logins"] = a.InvalidLogins
	data["threshold"] = a.Threshold
	data["occurred_at"] = a.OccurredAt.UTC().Format(time.RFC3339)

	subject, err := s.renderTemplate("subject", tpl.subject, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render alert subject", "kind", a.Kind.String(), "error", err)
		return nil
	}

	body, err := s.renderTemplate("body", tpl.body, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render alert body", "kind", a.Kind.String(), "error", err)
		return nil
	}

	send := func(ctx context.Context) error {
		return s.repoMail.Send(ctx, mail.Message{To: to, Subject: subject, HTMLBody: body})
	}

	err = s.idemp.Exec(ctx, "notification:"+a.EventID, send, idempotency.WithRetryFailed())
	switch {
	case err == nil:
		slog.InfoContext(ctx, "alert sent", "kind", a.Kind.String(), "event_id", a.EventID, "username", a.Username)
		return nil
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		slog.InfoContext(ctx, "alert already sent", "kind", a.Kind.String(), "event_id", a.EventID)
		return nil
	default:
		slog.ErrorContext(ctx, "failed to send alert", "kind", a.Kind.String(), "event_id", a.EventID, "error", err)
		return err
	}
}
