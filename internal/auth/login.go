// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxIssueAttempts bounds the prune/insert/re-read cycle when concurrent
// logins for the same user race on the tokens.user_id unique constraint.
const maxIssueAttempts = 3

// LoginRequest carries what the caller presented. A non-empty Token always
// wins over Login/Password.
type LoginRequest struct {
	Token    string
	Login    string
	Password string
}

// Result is the outcome of a login attempt that reached a decision.
// Storage failures are reported as errors instead.
type Result struct {
	Granted bool
	Token   string
	Role    string
	// Status is the HTTP status the boundary should reply with.
	Status int
	// Reason explains a rejection; nil when granted.
	Reason error
}

func granted(token, role string) Result {
	return Result{Granted: true, Token: token, Role: role, Status: http.StatusOK}
}

func rejected(status int, reason error) Result {
	return Result{Status: status, Reason: reason}
}

// LoginOrchestrator turns a presented token or a login/password pair into a
// grant or a rejection, issuing or reusing the user's single token.
type LoginOrchestrator struct {
	sessions    *SessionValidator
	credentials *CredentialValidator
	tokens      TokenStore
	codec       *TokenCodec
	opts        options
}

// NewLoginOrchestrator creates a LoginOrchestrator.
func NewLoginOrchestrator(
	sessions *SessionValidator,
	credentials *CredentialValidator,
	tokens TokenStore,
	codec *TokenCodec,
	opts ...Option,
) (*LoginOrchestrator, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session validator is required")
	}
	if credentials == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential validator is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token store is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token codec is required")
	}
	return &LoginOrchestrator{
		sessions:    sessions,
		credentials: credentials,
		tokens:      tokens,
		codec:       codec,
		opts:        buildOptions(opts),
	}, nil
}

// Login runs exactly one of the token path or the credential path.
// A presented but invalid token is rejected with 403 and never falls back
// to the credentials. Missing or wrong credentials are rejected with 401.
func (o *LoginOrchestrator) Login(ctx context.Context, req LoginRequest) (Result, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	var (
		path string
		res  Result
		err  error
	)
	switch {
	case req.Token != "":
		path = PathToken
		res, err = o.loginWithToken(ctx, req.Token)
	case req.Login != "" && req.Password != "":
		path = PathCredentials
		res, err = o.loginWithCredentials(ctx, req.Login, req.Password)
	default:
		path = PathNone
		res = rejected(http.StatusUnauthorized, invalidCredentials("no credentials supplied"))
	}

	span.SetAttributes(attribute.String("auth.path", path))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		o.opts.recorder.LoginOutcome(path, OutcomeError)
	case res.Granted:
		o.opts.recorder.LoginOutcome(path, OutcomeGranted)
	default:
		span.SetAttributes(attribute.Int("auth.status", res.Status))
		o.opts.recorder.LoginOutcome(path, OutcomeRejected)
		o.opts.logger.DebugContext(ctx, "login rejected",
			"path", path,
			"status", res.Status,
			"reason", res.Reason)
	}
	return res, err
}

func (o *LoginOrchestrator) loginWithToken(ctx context.Context, token string) (Result, error) {
	state, _, err := o.sessions.Check(ctx, token)
	if err != nil {
		return Result{}, err
	}
	if state != TokenActive {
		return rejected(http.StatusForbidden, invalidToken(state.String())), nil
	}

	role, ok, err := o.sessions.ResolveRole(ctx, token)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Pruned or deleted between the two reads.
		return rejected(http.StatusForbidden, invalidToken("no owner")), nil
	}
	return granted(token, role), nil
}

func (o *LoginOrchestrator) loginWithCredentials(ctx context.Context, login, password string) (Result, error) {
	user, ok, err := o.credentials.Matches(ctx, login, password)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected(http.StatusUnauthorized, invalidCredentials("mismatch")), nil
	}

	token, err := o.obtainToken(ctx, user)
	if err != nil {
		return Result{}, err
	}
	return granted(token, user.Role), nil
}

// obtainToken returns the user's live token, issuing one if none exists.
// The tokens.user_id unique constraint makes the insert the serialization
// point: a conflict means another request issued first, so re-read and reuse.
func (o *LoginOrchestrator) obtainToken(ctx context.Context, user *User) (string, error) {
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		live, err := o.sessions.LiveTokenForUser(ctx, user.ID)
		if err != nil {
			return "", err
		}
		if live != nil {
			o.opts.recorder.TokenReused()
			return live.Token, nil
		}

		token, expire, err := o.codec.Issue(user.Login)
		if err != nil {
			return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").
				With("user_id", user.ID).
				Wrap(err)
		}

		record, err := NewTokenRecord(token, user.ID, expire)
		if err != nil {
			return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").
				With("user_id", user.ID).
				Wrap(err)
		}

		storeCtx, cancel := o.opts.storeContext(ctx)
		err = o.tokens.Insert(storeCtx, record)
		cancel()
		if err == nil {
			o.opts.recorder.TokenIssued()
			o.opts.logger.DebugContext(ctx, "issued session token",
				"user_id", user.ID,
				"expire", expire)
			return token, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", storeError("insert token", err)
		}

		o.opts.logger.DebugContext(ctx, "concurrent token issue detected, re-reading",
			"user_id", user.ID,
			"attempt", attempt)
	}

	return "", storeError("issue token", oops.
		With("user_id", user.ID).
		Errorf("token issuance did not settle after %d attempts", maxIssueAttempts))
}
