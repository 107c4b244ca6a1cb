// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package main

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	authpg "github.com/shelfkeep/shelfkeep/internal/auth/postgres"
	"github.com/shelfkeep/shelfkeep/internal/seed"
)

// seedFs is where seed files are read from. Tests replace it.
var seedFs = afero.NewOsFs()

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Create the users listed in a seed file",
		Long: `Validates a users seed file and creates every user whose login does
not exist yet. This command is idempotent - existing users are skipped,
never updated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args[0], cfg)
		},
	}

	cmd.Flags().String("database-url", "", "PostgreSQL connection string")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultCommandTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, path string, sc *seedConfig) error {
	file, err := readSeedFile(path)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	logger := setupLogging(cfg)

	// cmd.Context() carries SIGINT/SIGTERM cancellation.
	ctx, cancel := context.WithTimeout(cmd.Context(), sc.timeout)
	defer cancel()

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	applier, err := seed.NewApplier(authpg.NewUserRepository(db), auth.NewArgon2idHasher(), logger)
	if err != nil {
		return err
	}
	report, err := applier.Apply(ctx, file)
	if err != nil {
		return err
	}

	cmd.Printf("Created %d user(s)%s\n", len(report.Created), listSuffix(report.Created))
	cmd.Printf("Skipped %d existing user(s)%s\n", len(report.Skipped), listSuffix(report.Skipped))
	return nil
}

// readSeedFile reads and parses a seed file from seedFs.
func readSeedFile(path string) (*seed.File, error) {
	data, err := afero.ReadFile(seedFs, path)
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("file", path).Wrap(err)
	}
	f, err := seed.Parse(data)
	if err != nil {
		return nil, oops.With("file", path).Wrap(err)
	}
	return f, nil
}

func listSuffix(logins []string) string {
	if len(logins) == 0 {
		return ""
	}
	return ": " + strings.Join(logins, ", ")
}
