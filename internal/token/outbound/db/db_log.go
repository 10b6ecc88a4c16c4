package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

// logWhere renders the filter as a WHERE clause. Time bounds are exclusive.
func logWhere(filter entity.LogFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Username != "" {
		add("username = $%d", filter.Username)
	}
	if filter.Passphrase != "" {
		add("passphrase = $%d", filter.Passphrase)
	}
	if filter.Message != "" {
		add("message = $%d", filter.Message)
	}
	if !filter.After.IsZero() {
		add("logged_at > $%d", filter.After)
	}
	if !filter.Before.IsZero() {
		add("logged_at < $%d", filter.Before)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *DB) CountLogs(ctx context.Context, filter entity.LogFilter) (n int64, err error) {
	ctx, span := s.startSpan(ctx, "CountLogs")
	defer func() { s.endSpan(span, err) }()

	where, args := logWhere(filter)
	err = s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM token_logs`+where, args...).Scan(&n)

	return n, s.mapError(err)
}

func (s *DB) ListLogs(ctx context.Context, filter entity.LogFilter) (_ []entity.LogEntry, _ int64, err error) {
	ctx, span := s.startSpan(ctx, "ListLogs")
	defer func() { s.endSpan(span, err) }()

	where, args := logWhere(filter)

	var total int64
	if err = s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM token_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, s.mapError(err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT id, username, passphrase, message, logged_at
		FROM token_logs%s
		ORDER BY logged_at, id
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	defer rows.Close()

	out := make([]entity.LogEntry, 0, filter.Limit)
	for rows.Next() {
		var l entity.LogEntry
		if err = rows.Scan(&l.ID, &l.Username, &l.Passphrase, &l.Message, &l.LoggedAt); err != nil {
			return nil, 0, err
		}
		l.LoggedAt = l.LoggedAt.UTC()
		out = append(out, l)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

// AppendLog writes one audit entry without touching the failed-login counter.
func (s *DB) AppendLog(ctx context.Context, entry entity.LogEntry) (err error) {
	ctx, span := s.startSpan(ctx, "AppendLog")
	defer func() { s.endSpan(span, err) }()

	return s.appendLog(ctx, s.conn, entry)
}

func (s *DB) appendLog(ctx context.Context, q execer, entry entity.LogEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO token_logs (id, username, passphrase, message, logged_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.Username, entry.Passphrase, entry.Message, entry.LoggedAt)

	return s.mapError(err)
}
