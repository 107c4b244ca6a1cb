// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// errStore marks every storage failure surfaced by this package so callers
// can fail closed regardless of which repository error sits underneath.
var errStore = errors.New("auth store unavailable")

// Error codes for the auth failure taxonomy.
const (
	CodeStoreFailed        = "AUTH_STORE_FAILED"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
)

// IsStoreError reports whether err is a storage failure surfaced by this package.
func IsStoreError(err error) bool {
	return errors.Is(err, errStore)
}

// IsInvalidToken reports whether err rejects a presented token.
func IsInvalidToken(err error) bool {
	return hasCode(err, CodeInvalidToken)
}

// IsInvalidCredentials reports whether err rejects a login/password pair.
func IsInvalidCredentials(err error) bool {
	return hasCode(err, CodeInvalidCredentials)
}

func hasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

func storeError(operation string, err error) error {
	return oops.Code(CodeStoreFailed).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", errStore, err))
}

func invalidToken(reason string) error {
	return oops.Code(CodeInvalidToken).
		With("reason", reason).
		Errorf("invalid session token")
}

func invalidCredentials(reason string) error {
	return oops.Code(CodeInvalidCredentials).
		With("reason", reason).
		Errorf("invalid login or password")
}
