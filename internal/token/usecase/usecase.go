package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomotp/internal/pkg/clock"
	"github.com/shandysiswandi/gomotp/internal/pkg/config"
	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomotp/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/jwt"
	"github.com/shandysiswandi/gomotp/internal/pkg/motp"
	"github.com/shandysiswandi/gomotp/internal/pkg/storage"
	"github.com/shandysiswandi/gomotp/internal/pkg/uid"
	"github.com/shandysiswandi/gomotp/internal/pkg/validator"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

type AuthenticatedEvent struct {
	EventID    string
	Username   string
	Mode       string
	Slot       int64
	OccurredAt time.Time
}

type ReplayDetectedEvent struct {
	EventID    string
	Username   string
	Mode       string
	ClientIP   string
	OccurredAt time.Time
}

type LockedEvent struct {
	EventID       string
	Username      string
	InvalidLogins int32
	Threshold     int32
	OccurredAt    time.Time
}

type repoMessaging interface {
	PublishAuthenticated(ctx context.Context, msg AuthenticatedEvent) error
	PublishReplayDetected(ctx context.Context, msg ReplayDetectedEvent) error
	PublishLocked(ctx context.Context, msg LockedEvent) error
}

type repoDB interface {
	GetCredential(ctx context.Context, username string) (*entity.Credential, error)
	GetCredentialSummary(ctx context.Context, username string) (*entity.CredentialSummary, error)
	ListCredentials(ctx context.Context, filter entity.CredentialFilter) ([]entity.CredentialSummary, int64, error)
	CountLogs(ctx context.Context, filter entity.LogFilter) (int64, error)
	ListLogs(ctx context.Context, filter entity.LogFilter) ([]entity.LogEntry, int64, error)

	AppendLog(ctx context.Context, entry entity.LogEntry) error
	SaveCredential(ctx context.Context, cred entity.Credential) error
	DeleteCredential(ctx context.Context, username string) error
	CommitAttempt(ctx context.Context, in entity.AttemptCommit) (entity.CommitResult, error)
	Unlock(ctx context.Context, username string, entry entity.LogEntry) error
}

type groupMembership interface {
	IsMember(ctx context.Context, group, username string) (bool, error)
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	idemp         idempotency.Idempotency
	validator     validator.Validator
	cfg           config.Config
	storage       storage.Storage
	membership    groupMembership
	uid           uid.NumberID
	uuid          uid.StringID
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	attempts metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Idempotency   idempotency.Idempotency
	Validator     validator.Validator
	Config        config.Config
	Storage       storage.Storage
	Membership    groupMembership
	UID           uid.NumberID
	UUID          uid.StringID
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	attempts, err := dep.Instrument.Meter("token.usecase").Int64Counter("motp.attempts",
		metric.WithDescription("Authentication attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		slog.Warn("failed to create attempts counter", "error", err)
		attempts = metricnoop.Int64Counter{}
	}

	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		storage:       dep.Storage,
		membership:    dep.Membership,
		uid:           dep.UID,
		uuid:          dep.UUID,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
		attempts:      attempts,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("token.usecase").Start(ctx, name)
}

// coordinator is rebuilt per attempt so window and lockout changes apply after a config reload.
func (s *Usecase) coordinator() *Coordinator {
	window := motp.DefaultWindow
	if d := s.cfg.GetSecond("modules.token.window.drift"); d > 0 {
		window.Drift = d
	}
	if p := s.cfg.GetSecond("modules.token.window.period"); p > 0 {
		window.Period = p
	}

	return &Coordinator{
		Window:           window,
		Guard:            NewReplayGuard(s.repoDB),
		LockoutThreshold: s.lockoutThreshold(),
	}
}

func (s *Usecase) lockoutThreshold() int32 {
	return max(s.cfg.GetInt32("modules.token.lockout_threshold"), 0)
}

func (s *Usecase) authenticated(ctx context.Context) (*jwt.Claims, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	return clm, nil
}

// authorizeAdmin checks group membership on every call, so removing a user
// from the admin group takes effect before their session token expires.
func (s *Usecase) authorizeAdmin(ctx context.Context) (*jwt.Claims, error) {
	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	group := s.cfg.GetString("modules.token.admin_group")
	if group == "" {
		slog.WarnContext(ctx, "admin group is not configured", "username", clm.Username)
		return nil, goerror.NewBusiness("Account not allowed", goerror.CodeForbidden)
	}

	ok, err := s.membership.IsMember(ctx, group, clm.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check group membership", "username", clm.Username, "group", group, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !ok {
		slog.WarnContext(ctx, "account is not in admin group", "username", clm.Username, "group", group)
		return nil, goerror.NewBusiness("Account not allowed", goerror.CodeForbidden)
	}

	return clm, nil
}

func pageOffset(page, size int32) int32 {
	return (max(page, 1) - 1) * size
}

func normalizeSize(size int32) int32 {
	if size <= 0 || size > 100 {
		return 10
	}
	return size
}
