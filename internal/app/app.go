package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gomotp/internal/pkg/clock"
	"github.com/shandysiswandi/gomotp/internal/pkg/config"
	"github.com/shandysiswandi/gomotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomotp/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/jwt"
	"github.com/shandysiswandi/gomotp/internal/pkg/mail"
	"github.com/shandysiswandi/gomotp/internal/pkg/membership"
	"github.com/shandysiswandi/gomotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gomotp/internal/pkg/router"
	"github.com/shandysiswandi/gomotp/internal/pkg/seal"
	"github.com/shandysiswandi/gomotp/internal/pkg/storage"
	"github.com/shandysiswandi/gomotp/internal/pkg/uid"
	"github.com/shandysiswandi/gomotp/internal/pkg/validator"
	"go.uber.org/atomic"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	ready  *atomic.Bool

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID
	jwt       jwt.JWT
	sealer    seal.Sealer

	// resources
	dbConn     *pgxpool.Pool
	cacheConn  *redis.Client
	idemp      idempotency.Idempotency
	mail       mail.Mail
	messaging  messaging.Messaging
	storage    storage.Storage
	membership membership.GroupMembership

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
		ready:  atomic.NewBool(false),
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initSeal()
	app.initDatabase()
	app.initCache()
	app.initMail()
	app.initStorage()
	app.initMessaging()
	app.initMembership()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
