// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/shelfkeep/shelfkeep/internal/auth"
)

// Report lists the logins a seed run created and skipped.
type Report struct {
	Created []string
	Skipped []string
}

// Applier writes seed users into a user store.
type Applier struct {
	users  auth.UserRepository
	hasher auth.CredentialHasher
	logger *slog.Logger
}

// NewApplier creates an Applier. A nil logger uses slog.Default.
func NewApplier(users auth.UserRepository, hasher auth.CredentialHasher, logger *slog.Logger) (*Applier, error) {
	if users == nil {
		return nil, oops.Code("SEED_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("SEED_INVALID_CONFIG").Errorf("credential hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{users: users, hasher: hasher, logger: logger}, nil
}

// Apply creates every user in f whose login is not yet taken. Existing
// logins are left untouched, so applying the same file twice is a no-op.
// The first failure stops the run; users created before it stay created.
func (a *Applier) Apply(ctx context.Context, f *File) (Report, error) {
	var report Report
	for _, u := range f.Users {
		hash := u.PasswordHash
		if hash == "" {
			var err error
			if hash, err = a.hasher.Hash(u.Password, u.Login); err != nil {
				return report, oops.Code("SEED_HASH_FAILED").With("login", u.Login).Wrap(err)
			}
		}

		user, err := auth.NewUser(u.Login, hash, u.Role)
		if err != nil {
			return report, oops.Code("SEED_INVALID").With("login", u.Login).Wrap(err)
		}

		err = a.users.Create(ctx, user)
		switch {
		case errors.Is(err, auth.ErrConflict):
			a.logger.InfoContext(ctx, "seed user exists, skipping", "login", u.Login)
			report.Skipped = append(report.Skipped, u.Login)
		case err != nil:
			return report, oops.Code("SEED_APPLY_FAILED").With("login", u.Login).Wrap(err)
		default:
			a.logger.InfoContext(ctx, "seed user created", "login", u.Login, "role", user.Role)
			report.Created = append(report.Created, u.Login)
		}
	}
	return report, nil
}
