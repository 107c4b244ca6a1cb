// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/samber/oops"
)

// DefaultRole is assigned to users created without an explicit role.
const DefaultRole = "user"

// Login validation constraints.
const (
	MinLoginLength = 3
	MaxLoginLength = 64
)

// loginRegex matches logins that start with a letter and contain only
// letters, digits, dots, dashes, and underscores.
var loginRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// User is an account allowed to obtain session tokens.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// NewUser creates a validated User instance. The ID is assigned by the store.
func NewUser(login, passwordHash, role string) (*User, error) {
	if err := ValidateLogin(login); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if role == "" {
		role = DefaultRole
	}
	return &User{
		Login:        login,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}, nil
}

// ValidateLogin validates a login against the naming rules.
func ValidateLogin(login string) error {
	if login == "" {
		return oops.Code("AUTH_INVALID_LOGIN").Errorf("login cannot be empty")
	}
	if len(login) < MinLoginLength {
		return oops.Code("AUTH_INVALID_LOGIN").
			With("min", MinLoginLength).
			Errorf("login must be at least %d characters", MinLoginLength)
	}
	if len(login) > MaxLoginLength {
		return oops.Code("AUTH_INVALID_LOGIN").
			With("max", MaxLoginLength).
			Errorf("login must be at most %d characters", MaxLoginLength)
	}
	if !loginRegex.MatchString(login) {
		return oops.Code("AUTH_INVALID_LOGIN").
			Errorf("login must start with a letter and contain only letters, numbers, '.', '-' and '_'")
	}
	return nil
}

// UserRepository manages user persistence. Users are created out of band
// (CLI, seeding); the login flow only reads them and upgrades hashes.
type UserRepository interface {
	// Create stores a new user and sets its ID.
	// Returns ErrConflict if the login is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByLogin retrieves a user by exact login.
	GetByLogin(ctx context.Context, login string) (*User, error)

	// RoleByToken returns the role of the user owning the token.
	// Returns ErrNotFound if the token does not resolve to a user.
	RoleByToken(ctx context.Context, token string) (string, error)

	// UpdatePasswordHash replaces the stored hash for a user.
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}
