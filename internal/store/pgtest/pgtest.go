// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

// Package pgtest starts throwaway PostgreSQL containers for integration tests.
package pgtest

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shelfkeep/shelfkeep/internal/store"
)

// Image is the PostgreSQL image used by every integration suite.
const Image = "postgres:16-alpine"

// Database is a running container with a connection string.
type Database struct {
	URL       string
	container *postgres.PostgresContainer
}

// Start launches a container and waits until it accepts connections.
func Start(ctx context.Context) (*Database, error) {
	container, err := postgres.Run(ctx,
		Image,
		postgres.WithDatabase("shelfkeep_test"),
		postgres.WithUsername("shelfkeep"),
		postgres.WithPassword("shelfkeep"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, oops.Code("PGTEST_START_FAILED").Wrap(err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx) //nolint:errcheck // start error takes precedence
		return nil, oops.Code("PGTEST_START_FAILED").Wrap(err)
	}
	return &Database{URL: url, container: container}, nil
}

// StartMigrated launches a container and applies all migrations.
func StartMigrated(ctx context.Context) (*Database, error) {
	db, err := Start(ctx)
	if err != nil {
		return nil, err
	}
	migrator, err := store.NewMigrator(db.URL)
	if err != nil {
		db.Terminate(ctx)
		return nil, err
	}
	defer migrator.Close() //nolint:errcheck // best effort in tests
	if err := migrator.Up(); err != nil {
		db.Terminate(ctx)
		return nil, err
	}
	return db, nil
}

// Terminate stops the container.
func (d *Database) Terminate(ctx context.Context) {
	if d == nil || d.container == nil {
		return
	}
	_ = d.container.Terminate(ctx) //nolint:errcheck // teardown
}
