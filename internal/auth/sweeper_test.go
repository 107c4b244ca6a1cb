// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/pkg/errutil"
)

type sweepRecorder struct {
	countingRecorder
	swept int64
}

func (r *sweepRecorder) TokensSwept(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swept += n
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

// signalPurger reports each call on a channel.
type signalPurger struct {
	mu    sync.Mutex
	calls int
	ch    chan struct{}
}

func (p *signalPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	select {
	case p.ch <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestNewTokenSweeper_RequiresPurger(t *testing.T) {
	_, err := auth.NewTokenSweeper(nil, time.Minute)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
}

func TestTokenSweeper_RunOnce(t *testing.T) {
	tokens := newMemTokenStore()
	clock := newFakeClock(epoch)
	tokens.put(auth.TokenRecord{Token: "dead", UserID: 1, Expire: epoch.Add(-time.Second)})
	tokens.put(auth.TokenRecord{Token: "edge", UserID: 2, Expire: epoch})
	tokens.put(auth.TokenRecord{Token: "live", UserID: 3, Expire: epoch.Add(time.Hour)})

	rec := &sweepRecorder{countingRecorder: countingRecorder{outcomes: make(map[string]int)}}
	sweeper, err := auth.NewTokenSweeper(tokens, time.Minute,
		auth.WithClock(clock.Now), auth.WithRecorder(rec))
	require.NoError(t, err)

	n, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a token expiring exactly now is still valid")
	assert.Equal(t, 2, tokens.rows())
	assert.Equal(t, int64(1), rec.swept)
}

func TestTokenSweeper_RunOnce_StoreFailure(t *testing.T) {
	sweeper, err := auth.NewTokenSweeper(failingPurger{}, time.Minute)
	require.NoError(t, err)

	_, err = sweeper.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, auth.IsStoreError(err))
}

func TestTokenSweeper_Run_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	purger := &signalPurger{ch: make(chan struct{}, 1)}
	sweeper, err := auth.NewTokenSweeper(purger, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	// Initial sweep plus at least one tick.
	for i := 0; i < 2; i++ {
		select {
		case <-purger.ch:
		case <-time.After(2 * time.Second):
			t.Fatal("sweeper did not run")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// lockedBuffer lets the test read log output while the sweeper writes it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Contains(b.buf.Bytes(), []byte(s))
}

func TestTokenSweeper_Run_LogsFailures(t *testing.T) {
	buf := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	sweeper, err := auth.NewTokenSweeper(failingPurger{}, time.Hour, auth.WithLogger(logger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sweeper.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return buf.Contains("token sweep failed")
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
