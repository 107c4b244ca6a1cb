// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shelfkeep/shelfkeep/internal/seed"
)

// NewValidateSeedsCmd creates the validate-seeds subcommand.
func NewValidateSeedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seeds FILE...",
		Short: "Validate users seed files without touching the database",
		Long: `Validates users seed files against the published schema and the
supported format version (` + seed.SupportedVersions + `).
Does NOT start the server or require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch seed errors early:
  shelfkeep validate-seeds deploy/users.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateSeeds(cmd, args)
		},
	}
}

func runValidateSeeds(cmd *cobra.Command, paths []string) error {
	var failed int
	for _, path := range paths {
		f, err := readSeedFile(path)
		if err != nil {
			failed++
			slog.Error("seed validation failed", "file", path, "detail", seed.FormatSchemaError(err))
			cmd.PrintErrf("FAIL %s: %s\n", path, seed.FormatSchemaError(err))
			continue
		}
		cmd.Printf("ok   %s (%d users)\n", path, len(f.Users))
	}

	if failed > 0 {
		return fmt.Errorf("validation failed: %d of %d seed files invalid", failed, len(paths))
	}
	slog.Info("all seed files valid", "count", len(paths))
	return nil
}
