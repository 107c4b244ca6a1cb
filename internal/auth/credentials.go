// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CredentialValidator checks login/password pairs against stored users.
type CredentialValidator struct {
	users  UserRepository
	hasher CredentialHasher
	opts   options
}

// NewCredentialValidator creates a CredentialValidator.
func NewCredentialValidator(users UserRepository, hasher CredentialHasher, opts ...Option) (*CredentialValidator, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential hasher is required")
	}
	return &CredentialValidator{users: users, hasher: hasher, opts: buildOptions(opts)}, nil
}

// Matches reports whether login and password identify a known user and
// returns that user on success. Unknown logins cost the same as a wrong
// password. A legacy hash that matches is upgraded to argon2id.
func (c *CredentialValidator) Matches(ctx context.Context, login, password string) (*User, bool, error) {
	storeCtx, cancel := c.opts.storeContext(ctx)
	user, lookupErr := c.users.GetByLogin(storeCtx, login)
	cancel()

	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, false, storeError("get user by login", lookupErr)
	}

	if lookupErr != nil {
		// Still burn an argon2id derivation so the response time does not
		// reveal whether the login exists.
		_, _ = c.hasher.Verify(password, login, dummyPasswordHash) //nolint:errcheck // result is irrelevant
		return nil, false, nil
	}

	valid, err := c.hasher.Verify(password, login, user.PasswordHash)
	if err != nil {
		return nil, false, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(err)
	}
	if !valid {
		return nil, false, nil
	}

	if c.hasher.NeedsUpgrade(user.PasswordHash) {
		c.upgradeHash(ctx, user, password)
	}

	return user, true, nil
}

// upgradeHash re-hashes a legacy credential. Login succeeds regardless.
func (c *CredentialValidator) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := c.hasher.Hash(password, user.Login)
	if err != nil {
		c.opts.logger.WarnContext(ctx, "failed to compute upgraded password hash",
			"user_id", user.ID,
			"error", err)
		return
	}

	storeCtx, cancel := c.opts.storeContext(ctx)
	defer cancel()

	if err := c.users.UpdatePasswordHash(storeCtx, user.ID, newHash); err != nil {
		c.opts.logger.WarnContext(ctx, "failed to persist upgraded password hash",
			"user_id", user.ID,
			"error", err)
		return
	}
	user.PasswordHash = newHash
	c.opts.logger.InfoContext(ctx, "upgraded legacy password hash", "user_id", user.ID)
}
