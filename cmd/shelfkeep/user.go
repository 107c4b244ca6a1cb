// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	authpg "github.com/shelfkeep/shelfkeep/internal/auth/postgres"
)

// passwordEnv supplies the password to user create when --password is not set.
const passwordEnv = "SHELFKEEP_PASSWORD"

// Default timeout for one-shot database commands.
const defaultCommandTimeout = 30 * time.Second

type userCreateConfig struct {
	login    string
	role     string
	password string
	timeout  time.Duration
}

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")

	cfg := &userCreateConfig{}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user that can obtain session tokens",
		Long: `Create a user. The password is hashed with argon2id before it is stored.

Prefer the ` + passwordEnv + ` environment variable over --password so the
password does not end up in shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUserCreate(cmd, cfg)
		},
	}
	create.Flags().StringVar(&cfg.login, "login", "", "login name (required)")
	create.Flags().StringVar(&cfg.role, "role", auth.DefaultRole, "role reported on login")
	create.Flags().StringVar(&cfg.password, "password", "", "password (default: $"+passwordEnv+")")
	create.Flags().DurationVar(&cfg.timeout, "timeout", defaultCommandTimeout, "timeout for database operations")
	_ = create.MarkFlagRequired("login") //nolint:errcheck // flag defined above
	cmd.AddCommand(create)

	return cmd
}

func runUserCreate(cmd *cobra.Command, uc *userCreateConfig) error {
	password := uc.password
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return oops.Code("USER_PASSWORD_REQUIRED").
			Errorf("a password is required (--password or %s)", passwordEnv)
	}
	if err := auth.ValidateLogin(uc.login); err != nil {
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

	ctx, cancel := context.WithTimeout(cmd.Context(), uc.timeout)
	defer cancel()

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	hash, err := auth.NewArgon2idHasher().Hash(password, uc.login)
	if err != nil {
		return err
	}
	user, err := auth.NewUser(uc.login, hash, uc.role)
	if err != nil {
		return err
	}

	err = authpg.NewUserRepository(db).Create(ctx, user)
	if errors.Is(err, auth.ErrConflict) {
		return oops.Code("USER_EXISTS").
			With("login", uc.login).
			Errorf("login %q is already taken", uc.login)
	}
	if err != nil {
		return err
	}

	cmd.Printf("Created user %s (id %d, role %s)\n", user.Login, user.ID, user.Role)
	return nil
}
