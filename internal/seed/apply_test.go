// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package seed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/auth/mocks"
	"github.com/shelfkeep/shelfkeep/internal/seed"
	"github.com/shelfkeep/shelfkeep/pkg/errutil"
)

func withLogin(login string) any {
	return mock.MatchedBy(func(u *auth.User) bool { return u.Login == login })
}

func TestNewApplier_Validation(t *testing.T) {
	_, err := seed.NewApplier(nil, mocks.NewMockCredentialHasher(t), nil)
	errutil.AssertErrorCode(t, err, "SEED_INVALID_CONFIG")

	_, err = seed.NewApplier(mocks.NewMockUserRepository(t), nil, nil)
	errutil.AssertErrorCode(t, err, "SEED_INVALID_CONFIG")
}

func TestApplier_Apply(t *testing.T) {
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockCredentialHasher(t)

	hasher.On("Hash", "secret", "admin").Return("$argon2id$hashed", nil).Once()
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
		return u.Login == "admin" && u.PasswordHash == "$argon2id$hashed" && u.Role == "admin"
	})).Return(nil).Once()
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
		return u.Login == "legacy" && u.PasswordHash == "5f4dcc3b" && u.Role == auth.DefaultRole
	})).Return(nil).Once()
	users.On("Create", mock.Anything, withLogin("taken")).Return(auth.ErrConflict).Once()
	hasher.On("Hash", "x", "taken").Return("$argon2id$other", nil).Once()

	a, err := seed.NewApplier(users, hasher, nil)
	require.NoError(t, err)

	report, err := a.Apply(context.Background(), &seed.File{
		Version: "1.0.0",
		Users: []seed.User{
			{Login: "admin", Password: "secret", Role: "admin"},
			{Login: "legacy", PasswordHash: "5f4dcc3b"},
			{Login: "taken", Password: "x"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "legacy"}, report.Created)
	assert.Equal(t, []string{"taken"}, report.Skipped)
}

func TestApplier_ApplyStopsOnStoreFailure(t *testing.T) {
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockCredentialHasher(t)

	users.On("Create", mock.Anything, withLogin("first")).Return(nil).Once()
	users.On("Create", mock.Anything, withLogin("second")).Return(errors.New("connection reset")).Once()

	a, err := seed.NewApplier(users, hasher, nil)
	require.NoError(t, err)

	report, err := a.Apply(context.Background(), &seed.File{
		Version: "1.0.0",
		Users: []seed.User{
			{Login: "first", PasswordHash: "h1"},
			{Login: "second", PasswordHash: "h2"},
			{Login: "third", PasswordHash: "h3"},
		},
	})
	errutil.AssertErrorCode(t, err, "SEED_APPLY_FAILED")
	errutil.AssertErrorContext(t, err, "login", "second")
	assert.Equal(t, []string{"first"}, report.Created)
	users.AssertNotCalled(t, "Create", mock.Anything, withLogin("third"))
}

func TestApplier_ApplyHashFailure(t *testing.T) {
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockCredentialHasher(t)
	hasher.On("Hash", "pw", "admin").Return("", errors.New("entropy exhausted")).Once()

	a, err := seed.NewApplier(users, hasher, nil)
	require.NoError(t, err)

	_, err = a.Apply(context.Background(), &seed.File{
		Version: "1.0.0",
		Users:   []seed.User{{Login: "admin", Password: "pw"}},
	})
	errutil.AssertErrorCode(t, err, "SEED_HASH_FAILED")
}
