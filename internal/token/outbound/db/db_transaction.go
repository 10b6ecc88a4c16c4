package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

// CommitAttempt applies the counter change and appends the audit entries of
// one attempt atomically. Increments happen in SQL so concurrent failures
// are never lost.
func (s *DB) CommitAttempt(ctx context.Context, in entity.AttemptCommit) (res entity.CommitResult, err error) {
	ctx, span := s.startSpan(ctx, "CommitAttempt")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	var query string
	switch in.Counter {
	case entity.CounterReset:
		query = `UPDATE token_credentials SET invalid_logins = 0, updated_at = NOW() WHERE username = $1 RETURNING invalid_logins`
	case entity.CounterIncrement:
		query = `UPDATE token_credentials SET invalid_logins = invalid_logins + 1, updated_at = NOW() WHERE username = $1 RETURNING invalid_logins`
	default:
		query = `SELECT invalid_logins FROM token_credentials WHERE username = $1`
	}

	if err = tx.QueryRow(ctx, query, in.Entry.Username).Scan(&res.InvalidLogins); err != nil {
		return res, s.mapError(err)
	}

	if err = s.appendLog(ctx, tx, in.Entry); err != nil {
		return res, err
	}

	res.LockedNow = in.Counter == entity.CounterIncrement &&
		in.LockThreshold > 0 &&
		res.InvalidLogins == in.LockThreshold
	if res.LockedNow {
		if err = s.appendLog(ctx, tx, in.LockEntry); err != nil {
			return res, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return res, s.mapError(err)
	}

	return res, nil
}

// Unlock clears the failed-login counter and records who was unlocked.
func (s *DB) Unlock(ctx context.Context, username string, entry entity.LogEntry) (err error) {
	ctx, span := s.startSpan(ctx, "Unlock")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	tag, err := tx.Exec(ctx, `UPDATE token_credentials SET invalid_logins = 0, updated_at = NOW() WHERE username = $1`, username)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return s.mapError(pgx.ErrNoRows)
	}

	if err = s.appendLog(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}
