// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
)

// DefaultStoreTimeout bounds every store round-trip made by this package.
const DefaultStoreTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/shelfkeep/shelfkeep/internal/auth")

// Login paths and outcomes reported to a Recorder.
const (
	PathToken       = "token"
	PathCredentials = "credentials"
	PathNone        = "none"

	OutcomeGranted  = "granted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder receives auth events for metrics.
type Recorder interface {
	LoginOutcome(path, outcome string)
	TokenIssued()
	TokenReused()
	TokenPruned()
}

type nopRecorder struct{}

func (nopRecorder) LoginOutcome(string, string) {}
func (nopRecorder) TokenIssued()                {}
func (nopRecorder) TokenReused()                {}
func (nopRecorder) TokenPruned()                {}

// Option configures the validators and the login orchestrator.
type Option func(*options)

type options struct {
	clock           Clock
	logger          *slog.Logger
	recorder        Recorder
	storeTimeout    time.Duration
	tokenTTL        time.Duration
	pruneOnValidate bool
}

func defaultOptions() options {
	return options{
		clock:           time.Now,
		logger:          slog.Default(),
		recorder:        nopRecorder{},
		storeTimeout:    DefaultStoreTimeout,
		tokenTTL:        DefaultTokenExpiry,
		pruneOnValidate: true,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the time source used for expiry decisions.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(o *options) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// WithStoreTimeout bounds each store call. Zero disables the bound and
// relies on the caller's context alone.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.storeTimeout = d
		}
	}
}

// WithTokenTTL sets the validity window of issued tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tokenTTL = d
		}
	}
}

// WithPruneOnValidate controls whether token validation deletes a token it
// finds expired.
func WithPruneOnValidate(enabled bool) Option {
	return func(o *options) {
		o.pruneOnValidate = enabled
	}
}

// storeContext derives the context for a single store round-trip.
func (o *options) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.storeTimeout)
}
