// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Session token configuration.
const (
	TokenBytes         = 32             // 32 bytes = 64 hex chars
	DefaultTokenExpiry = 24 * time.Hour // 24 hour expiry
)

// Clock returns the current instant. Components take one so tests can pin time.
type Clock func() time.Time

// TokenRecord is a persisted session grant.
type TokenRecord struct {
	Token  string
	UserID int64
	Expire time.Time
}

// NewTokenRecord creates a validated TokenRecord instance.
func NewTokenRecord(token string, userID int64, expire time.Time) (*TokenRecord, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token cannot be empty")
	}
	if userID <= 0 {
		return nil, oops.Code("TOKEN_INVALID_USER").Errorf("user ID must be positive")
	}
	if expire.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &TokenRecord{Token: token, UserID: userID, Expire: expire}, nil
}

// IsExpiredAt returns true if the token is dead at t. A token whose expiry
// equals t is still live.
func (r *TokenRecord) IsExpiredAt(t time.Time) bool {
	return t.After(r.Expire)
}

// TokenCodec generates opaque session tokens and their expiry instant.
type TokenCodec struct {
	ttl   time.Duration
	clock Clock
}

// NewTokenCodec creates a TokenCodec. A non-positive ttl falls back to
// DefaultTokenExpiry; a nil clock falls back to time.Now.
func NewTokenCodec(ttl time.Duration, clock Clock) *TokenCodec {
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}
	if clock == nil {
		clock = time.Now
	}
	return &TokenCodec{ttl: ttl, clock: clock}
}

// TTL returns the validity window of issued tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue creates a new random token for login and computes its expiry.
// The token never contains the login; it is accepted so callers can tag
// errors and spans with it.
func (c *TokenCodec) Issue(login string) (token string, expire time.Time, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", time.Time{}, oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			With("login", login).
			Wrap(err)
	}

	return hex.EncodeToString(tokenBytes), c.clock().Add(c.ttl), nil
}

// TokenStore manages session token persistence. Every validity check reads
// through to the store; there is no in-process cache.
type TokenStore interface {
	// FindByToken retrieves a token record by exact token match.
	// Returns ErrNotFound if no such token exists.
	FindByToken(ctx context.Context, token string) (*TokenRecord, error)

	// FindByUser retrieves the token record owned by a user.
	// Returns ErrNotFound if the user holds no token.
	FindByUser(ctx context.Context, userID int64) (*TokenRecord, error)

	// Insert stores a new token record.
	// Returns ErrConflict if the user already holds a token or the token collides.
	Insert(ctx context.Context, record *TokenRecord) error

	// Delete removes the token owned by a user. Deleting nothing is not an error.
	Delete(ctx context.Context, userID int64) error

	// DeleteExpired removes the user's token only if it is expired at now.
	// Reports whether a row was removed.
	DeleteExpired(ctx context.Context, userID int64, now time.Time) (bool, error)
}
