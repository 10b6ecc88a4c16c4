package db

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/pkg/seal"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

func (s *DB) GetCredential(ctx context.Context, username string) (_ *entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "GetCredential")
	defer func() { s.endSpan(span, err) }()

	var (
		cred        entity.Credential
		secret, pin []byte
	)
	err = s.conn.QueryRow(ctx, `
		SELECT username, secret, pin, invalid_logins
		FROM token_credentials
		WHERE username = $1`, username,
	).Scan(&cred.Username, &secret, &pin, &cred.InvalidLogins)
	if err != nil {
		return nil, s.mapError(err)
	}

	if cred.Secret, err = s.open(secret, username, seal.PurposeTokenSecret); err != nil {
		return nil, fmt.Errorf("open secret: %w", err)
	}
	if cred.Pin, err = s.open(pin, username, seal.PurposeTokenPin); err != nil {
		return nil, fmt.Errorf("open pin: %w", err)
	}

	return &cred, nil
}

func (s *DB) GetCredentialSummary(ctx context.Context, username string) (_ *entity.CredentialSummary, err error) {
	ctx, span := s.startSpan(ctx, "GetCredentialSummary")
	defer func() { s.endSpan(span, err) }()

	var sum entity.CredentialSummary
	err = s.conn.QueryRow(ctx, `
		SELECT username, secret IS NOT NULL, pin IS NOT NULL, invalid_logins, updated_at
		FROM token_credentials
		WHERE username = $1`, username,
	).Scan(&sum.Username, &sum.HasToken, &sum.HasPin, &sum.InvalidLogins, &sum.UpdatedAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &sum, nil
}

func (s *DB) ListCredentials(ctx context.Context, filter entity.CredentialFilter) (_ []entity.CredentialSummary, _ int64, err error) {
	ctx, span := s.startSpan(ctx, "ListCredentials")
	defer func() { s.endSpan(span, err) }()

	var total int64
	if err = s.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM token_credentials
		WHERE ($1::text = '' OR username ILIKE '%' || $1::text || '%')`, filter.Search,
	).Scan(&total); err != nil {
		return nil, 0, s.mapError(err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT username, secret IS NOT NULL, pin IS NOT NULL, invalid_logins, updated_at
		FROM token_credentials
		WHERE ($1::text = '' OR username ILIKE '%' || $1::text || '%')
		ORDER BY username
		LIMIT $2 OFFSET $3`, filter.Search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	defer rows.Close()

	out := make([]entity.CredentialSummary, 0, filter.Limit)
	for rows.Next() {
		var sum entity.CredentialSummary
		if err = rows.Scan(&sum.Username, &sum.HasToken, &sum.HasPin, &sum.InvalidLogins, &sum.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, sum)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

// SaveCredential upserts the secret and PIN. The failed-login counter is
// left alone; only attempts and unlocks change it.
func (s *DB) SaveCredential(ctx context.Context, cred entity.Credential) (err error) {
	ctx, span := s.startSpan(ctx, "SaveCredential")
	defer func() { s.endSpan(span, err) }()

	secret, err := s.seal(cred.Secret, cred.Username, seal.PurposeTokenSecret)
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}
	pin, err := s.seal(cred.Pin, cred.Username, seal.PurposeTokenPin)
	if err != nil {
		return fmt.Errorf("seal pin: %w", err)
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO token_credentials (username, secret, pin)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET secret = EXCLUDED.secret, pin = EXCLUDED.pin, updated_at = NOW()`,
		cred.Username, secret, pin)

	return s.mapError(err)
}

func (s *DB) DeleteCredential(ctx context.Context, username string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteCredential")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM token_credentials WHERE username = $1`, username)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}
