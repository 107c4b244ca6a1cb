// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
)

// TokenState classifies a presented token.
type TokenState int

// Token states.
const (
	TokenUnknown TokenState = iota
	TokenActive
	TokenExpired
)

// String returns the lowercase state name.
func (s TokenState) String() string {
	switch s {
	case TokenActive:
		return "active"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SessionValidator decides whether presented tokens are live.
type SessionValidator struct {
	tokens TokenStore
	users  UserRepository
	opts   options
}

// NewSessionValidator creates a SessionValidator.
func NewSessionValidator(tokens TokenStore, users UserRepository, opts ...Option) (*SessionValidator, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token store is required")
	}
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	return &SessionValidator{tokens: tokens, users: users, opts: buildOptions(opts)}, nil
}

// Check classifies token as active, expired, or unknown. An empty token is
// unknown without touching the store. When pruning is enabled an expired
// record is deleted before returning.
func (v *SessionValidator) Check(ctx context.Context, token string) (TokenState, *TokenRecord, error) {
	if token == "" {
		return TokenUnknown, nil, nil
	}

	ctx, span := tracer.Start(ctx, "auth.SessionValidator.Check")
	defer span.End()

	storeCtx, cancel := v.opts.storeContext(ctx)
	record, err := v.tokens.FindByToken(storeCtx, token)
	cancel()
	if errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.String("auth.token_state", TokenUnknown.String()))
		return TokenUnknown, nil, nil
	}
	if err != nil {
		return TokenUnknown, nil, storeError("find token", err)
	}

	now := v.opts.clock()
	if record.IsExpiredAt(now) {
		span.SetAttributes(attribute.String("auth.token_state", TokenExpired.String()))
		if v.opts.pruneOnValidate {
			v.prune(ctx, record.UserID, now)
		}
		return TokenExpired, record, nil
	}

	span.SetAttributes(attribute.String("auth.token_state", TokenActive.String()))
	return TokenActive, record, nil
}

// IsValid reports whether token is currently live. Any error must be
// treated as "not authorized".
func (v *SessionValidator) IsValid(ctx context.Context, token string) (bool, error) {
	state, _, err := v.Check(ctx, token)
	if err != nil {
		return false, err
	}
	return state == TokenActive, nil
}

// ResolveRole returns the role of the user owning token. ok is false when
// the token does not resolve to a user.
func (v *SessionValidator) ResolveRole(ctx context.Context, token string) (role string, ok bool, err error) {
	if token == "" {
		return "", false, nil
	}

	storeCtx, cancel := v.opts.storeContext(ctx)
	defer cancel()

	role, err = v.users.RoleByToken(storeCtx, token)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeError("resolve role", err)
	}
	return role, true, nil
}

// LiveTokenForUser returns the user's live token, or nil when there is none.
// A stale token found along the way is pruned.
func (v *SessionValidator) LiveTokenForUser(ctx context.Context, userID int64) (*TokenRecord, error) {
	storeCtx, cancel := v.opts.storeContext(ctx)
	record, err := v.tokens.FindByUser(storeCtx, userID)
	cancel()
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find token by user", err)
	}

	now := v.opts.clock()
	if !record.IsExpiredAt(now) {
		return record, nil
	}

	storeCtx, cancel = v.opts.storeContext(ctx)
	deleted, err := v.tokens.DeleteExpired(storeCtx, userID, now)
	cancel()
	if err != nil {
		return nil, storeError("delete expired token", err)
	}
	if deleted {
		v.opts.recorder.TokenPruned()
		v.opts.logger.DebugContext(ctx, "pruned expired token", "user_id", userID)
	}
	return nil, nil
}

// prune deletes an expired token found during validation. Failures are
// logged only; the caller already has its answer.
func (v *SessionValidator) prune(ctx context.Context, userID int64, now time.Time) {
	storeCtx, cancel := v.opts.storeContext(ctx)
	defer cancel()

	deleted, err := v.tokens.DeleteExpired(storeCtx, userID, now)
	if err != nil {
		v.opts.logger.WarnContext(ctx, "failed to prune expired token",
			"user_id", userID,
			"error", err)
		return
	}
	if deleted {
		v.opts.recorder.TokenPruned()
		v.opts.logger.DebugContext(ctx, "pruned expired token", "user_id", userID)
	}
}
