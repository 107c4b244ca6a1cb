// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/config"
)

// isolateConfig keeps the user's config file and environment out of a test.
func isolateConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("DATABASE_URL", "")
	t.Setenv(passwordEnv, "")

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
	return mock
}

// useMockDatabase points the one-shot commands at mock.
func useMockDatabase(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	prev := openDatabase
	openDatabase = func(context.Context, config.DatabaseConfig, *slog.Logger) (Database, error) {
		return mock, nil
	}
	t.Cleanup(func() { openDatabase = prev })
}
