// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// DefaultSweepInterval is how often the sweeper purges expired tokens.
const DefaultSweepInterval = time.Hour

// ExpiredPurger removes every token expired at now and returns the count.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// SweepRecorder is implemented by recorders that also count swept tokens.
type SweepRecorder interface {
	TokensSwept(n int64)
}

// TokenSweeper deletes tokens nobody presented again after they expired.
// Validation and login prune lazily per user; the sweeper bounds the table
// for users who never come back.
type TokenSweeper struct {
	purger   ExpiredPurger
	interval time.Duration
	opts     options
}

// NewTokenSweeper creates a sweeper. A non-positive interval uses
// DefaultSweepInterval.
func NewTokenSweeper(purger ExpiredPurger, interval time.Duration, opts ...Option) (*TokenSweeper, error) {
	if purger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token purger is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &TokenSweeper{purger: purger, interval: interval, opts: buildOptions(opts)}, nil
}

// RunOnce purges expired tokens a single time.
func (s *TokenSweeper) RunOnce(ctx context.Context) (int64, error) {
	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	n, err := s.purger.PurgeExpired(storeCtx, s.opts.clock())
	if err != nil {
		return 0, storeError("purge expired tokens", err)
	}
	if n > 0 {
		s.opts.logger.InfoContext(ctx, "purged expired tokens", "count", n)
		if rec, ok := s.opts.recorder.(SweepRecorder); ok {
			rec.TokensSwept(n)
		}
	}
	return n, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
// Failed cycles are logged and do not stop the loop.
func (s *TokenSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *TokenSweeper) cycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.opts.logger.ErrorContext(ctx, "token sweep failed", "error", err)
	}
}
