package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/seal"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DB stores credentials and the audit log in PostgreSQL.
// Secrets and PINs are sealed before they reach the database.
type DB struct {
	conn   *pgxpool.Pool
	sealer seal.Sealer
	ins    instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, sealer seal.Sealer, ins instrument.Instrumentation) *DB {
	return &DB{
		conn:   conn,
		sealer: sealer,
		ins:    ins,
	}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// mapError translates driver errors:
//   - no rows → goerror.ErrNotFound
//   - 23505 unique violation → goerror.ErrConflict
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("token.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *DB) seal(value, username string, p seal.Purpose) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	return s.sealer.Seal([]byte(value), seal.Scope{Username: username, Purpose: p})
}

func (s *DB) open(value []byte, username string, p seal.Purpose) (string, error) {
	if value == nil {
		return "", nil
	}
	plain, err := s.sealer.Open(value, seal.Scope{Username: username, Purpose: p})
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
