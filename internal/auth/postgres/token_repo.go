// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/shelfkeep/shelfkeep/internal/auth"
)

// TokenRepository implements auth.TokenStore using PostgreSQL.
type TokenRepository struct {
	pool poolIface
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool poolIface) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// FindByToken retrieves the record for a token value.
func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*auth.TokenRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT token, user_id, expire
		FROM tokens
		WHERE token = $1
	`, token)

	record, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token").
			Wrap(err)
	}
	return record, nil
}

// FindByUser retrieves the token row owned by a user.
func (r *TokenRepository) FindByUser(ctx context.Context, userID int64) (*auth.TokenRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT token, user_id, expire
		FROM tokens
		WHERE user_id = $1
	`, userID)

	record, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("user_id", userID).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_USER_FAILED").
			With("operation", "get token by user").
			With("user_id", userID).
			Wrap(err)
	}
	return record, nil
}

// Insert stores a new token. A second row for the same user, or a colliding
// token value, is reported as auth.ErrConflict.
func (r *TokenRepository) Insert(ctx context.Context, record *auth.TokenRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tokens (token, user_id, expire)
		VALUES ($1, $2, $3)
	`, record.Token, record.UserID, record.Expire)
	if isUniqueViolation(err) {
		return oops.Code("TOKEN_CONFLICT").
			With("user_id", record.UserID).
			Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.Code("TOKEN_INSERT_FAILED").
			With("operation", "insert token").
			With("user_id", record.UserID).
			Wrap(err)
	}
	return nil
}

// Delete removes the user's token. Deleting nothing is not an error.
func (r *TokenRepository) Delete(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM tokens WHERE user_id = $1
	`, userID)
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete token").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes the user's token only if it expired strictly before
// now, and reports whether a row was removed. A token inserted concurrently
// by another login is never touched.
func (r *TokenRepository) DeleteExpired(ctx context.Context, userID int64, now time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM tokens WHERE user_id = $1 AND expire < $2
	`, userID, now)
	if err != nil {
		return false, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired token").
			With("user_id", userID).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// PurgeExpired removes every expired token and returns the count. It backs
// the periodic sweeper; login correctness does not depend on it.
func (r *TokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM tokens WHERE expire < $1
	`, now)
	if err != nil {
		return 0, oops.Code("TOKEN_PURGE_FAILED").
			With("operation", "purge expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanToken scans a single row into a TokenRecord.
// Callers are responsible for handling pgx.ErrNoRows.
func scanToken(row pgx.Row) (*auth.TokenRecord, error) {
	var record auth.TokenRecord
	if err := row.Scan(&record.Token, &record.UserID, &record.Expire); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	return &record, nil
}

// Compile-time interface check.
var _ auth.TokenStore = (*TokenRepository)(nil)
