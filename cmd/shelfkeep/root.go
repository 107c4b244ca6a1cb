// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/logging"
)

const serviceName = "shelfkeep"

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the shelfkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelfkeep",
		Short: "Shelfkeep - inventory catalog API",
		Long: `Shelfkeep serves an inventory catalog over HTTP: catalogs, items and
item images, guarded by opaque session tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/shelfkeep/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before reading the environment (default: .env)")
	config.RegisterLogFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewValidateSeedsCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig reads every config layer, letting the flags the user set on
// cmd win, and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		DotEnv:     envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg *config.Config) *slog.Logger {
	// Validate already rejected unknown levels.
	level, _ := logging.ParseLevel(cfg.Log.Level) //nolint:errcheck // validated
	return logging.SetDefault(serviceName, version, cfg.Log.Format, level)
}
