// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/shelfkeep/shelfkeep/pkg/errutil"
)

// Service wires the validators, the token codec and the login orchestrator
// over one token store and one user repository. It is what the HTTP
// boundary depends on. Store failures are logged here, once per call, so
// callers only map them to a reply.
type Service struct {
	sessions    *SessionValidator
	credentials *CredentialValidator
	login       *LoginOrchestrator
	codec       *TokenCodec
	logger      *slog.Logger
}

// NewAuthService creates a Service. Options apply to every component.
func NewAuthService(tokens TokenStore, users UserRepository, hasher CredentialHasher, opts ...Option) (*Service, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token store is required")
	}
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential hasher is required")
	}

	o := buildOptions(opts)

	sessions, err := NewSessionValidator(tokens, users, opts...)
	if err != nil {
		return nil, err
	}
	credentials, err := NewCredentialValidator(users, hasher, opts...)
	if err != nil {
		return nil, err
	}
	codec := NewTokenCodec(o.tokenTTL, o.clock)
	login, err := NewLoginOrchestrator(sessions, credentials, tokens, codec, opts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		sessions:    sessions,
		credentials: credentials,
		login:       login,
		codec:       codec,
		logger:      o.logger,
	}, nil
}

// Login authenticates a presented token or login/password pair.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Result, error) {
	res, err := s.login.Login(ctx, req)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "login failed", err)
	}
	return res, err
}

// IsValid reports whether token is currently live.
func (s *Service) IsValid(ctx context.Context, token string) (bool, error) {
	ok, err := s.sessions.IsValid(ctx, token)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "token validation failed", err)
	}
	return ok, err
}

// ResolveRole returns the role of the user owning token.
func (s *Service) ResolveRole(ctx context.Context, token string) (string, bool, error) {
	role, ok, err := s.sessions.ResolveRole(ctx, token)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "role lookup failed", err)
	}
	return role, ok, err
}

// Sessions returns the underlying SessionValidator.
func (s *Service) Sessions() *SessionValidator {
	return s.sessions
}

// TokenTTL returns the validity window of issued tokens.
func (s *Service) TokenTTL() time.Duration {
	return s.codec.TTL()
}
