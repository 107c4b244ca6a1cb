// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shelfkeep/shelfkeep/internal/store"
)

// SchemaMigrator is the part of store.Migrator the migrate command drives.
type SchemaMigrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (store.MigrationStatus, error)
	Close() error
}

// newSchemaMigrator creates the migrator for the migrate command. Tests
// replace it.
var newSchemaMigrator = func(databaseURL string) (SchemaMigrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply, roll back, or inspect the embedded schema migrations.

The database is taken from DATABASE_URL, SHELFKEEP_DATABASE__URL, the
config file, or --database-url.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m SchemaMigrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	var confirmed bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (destroys all data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("migrate down drops every table; rerun with --yes to confirm")
			}
			return withMigrator(cmd, func(m SchemaMigrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirmed, "yes", false, "confirm that all data may be destroyed")
	cmd.AddCommand(down)

	var asJSON bool
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m SchemaMigrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				cmd.Println(formatMigrationStatus(status, asJSON))
				return nil
			})
		},
	}
	versionCmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.AddCommand(versionCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the recorded schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use this
after manually repairing a migration that failed halfway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m SchemaMigrator) error {
				if err := m.Force(target); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", target)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator and closes it
// after fn.
func withMigrator(cmd *cobra.Command, fn func(SchemaMigrator) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	m, err := newSchemaMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return 0, oops.Code("INVALID_VERSION").
			With("input", raw).
			Errorf("version must be a non-negative integer, got %q", raw)
	}
	return v, nil
}

func formatMigrationStatus(status store.MigrationStatus, asJSON bool) string {
	if asJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Sprintf(`{"error": %q}`, err.Error())
		}
		return string(data)
	}

	var b strings.Builder
	name := status.Name
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(&b, "version: %d (%s)\n", status.Version, name)
	fmt.Fprintf(&b, "dirty:   %t\n", status.Dirty)
	if len(status.Pending) == 0 {
		b.WriteString("pending: none")
	} else {
		pending := make([]string, len(status.Pending))
		for i, v := range status.Pending {
			pending[i] = strconv.FormatUint(uint64(v), 10)
		}
		fmt.Fprintf(&b, "pending: %s", strings.Join(pending, ", "))
	}
	return b.String()
}
