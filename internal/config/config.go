// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

// Package config loads shelfkeep settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/shelfkeep/shelfkeep/internal/logging"
	"github.com/shelfkeep/shelfkeep/internal/xdg"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: SHELFKEEP_AUTH__TOKEN_TTL sets auth.token_ttl.
const EnvPrefix = "SHELFKEEP_"

// Config is the full runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Uploads  UploadsConfig  `koanf:"uploads"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Access   AccessConfig   `koanf:"access"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	MaxConns       int32         `koanf:"max_conns"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	ConnectBackoff time.Duration `koanf:"connect_backoff"`
}

// AuthConfig configures the session-token subsystem.
type AuthConfig struct {
	TokenTTL        time.Duration `koanf:"token_ttl"`
	StoreTimeout    time.Duration `koanf:"store_timeout"`
	PruneOnValidate bool          `koanf:"prune_on_validate"`
	// SweepInterval is how often expired tokens are purged. Zero disables
	// the sweeper.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// UploadsConfig configures the image store.
type UploadsConfig struct {
	Dir      string `koanf:"dir"`
	MaxBytes int64  `koanf:"max_bytes"`
}

// LogConfig configures slog output and the access log.
type LogConfig struct {
	Format    string   `koanf:"format"`
	Level     string   `koanf:"level"`
	SkipPaths []string `koanf:"skip_paths"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// AccessConfig configures role checks on mutating routes.
type AccessConfig struct {
	Roles map[string][]string `koanf:"roles"`
	// DefaultRoles enables the built-in role table when Roles is empty.
	DefaultRoles bool `koanf:"default_roles"`
}

// defaults returns the built-in values. uploads.dir is resolved at load
// time because it depends on the environment.
func defaults() map[string]any {
	return map[string]any{
		"http.addr":                ":8080",
		"http.cors_origins":        []string{"*"},
		"http.read_header_timeout": "10s",
		"http.shutdown_timeout":    "15s",
		"database.url":             "",
		"database.max_conns":       10,
		"database.connect_retries": 5,
		"database.connect_backoff": "500ms",
		"auth.token_ttl":           "24h",
		"auth.store_timeout":       "5s",
		"auth.prune_on_validate":   true,
		"auth.sweep_interval":      "1h",
		"uploads.max_bytes":        10 << 20,
		"log.format":               logging.FormatJSON,
		"log.level":                "info",
		"log.skip_paths":           []string{},
		"metrics.addr":             "127.0.0.1:9100",
		"access.default_roles":     false,
	}
}

// flagKeys maps command-line flag names to config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"addr":          "http.addr",
	"database-url":  "database.url",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"metrics-addr":  "metrics.addr",
	"uploads-dir":   "uploads.dir",
	"token-ttl":     "auth.token_ttl",
	"store-timeout": "auth.store_timeout",
}

// RegisterServeFlags adds the flags that override config keys.
func RegisterServeFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("database-url", "", "PostgreSQL connection string")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	fs.String("uploads-dir", "", "directory for item images (default: XDG_DATA_HOME/shelfkeep/uploads)")
	fs.Duration("token-ttl", 24*time.Hour, "session token lifetime")
	fs.Duration("store-timeout", 5*time.Second, "timeout for each auth store call")
}

// RegisterLogFlags adds the logging flags shared by every command.
func RegisterLogFlags(fs *pflag.FlagSet) {
	fs.String("log-format", logging.FormatJSON, "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFile is an explicit YAML path. When empty, the XDG default is
	// used if it exists.
	ConfigFile string
	// DotEnv is the .env file to load into the environment first. Empty
	// means ".env"; a missing file is ignored.
	DotEnv string
	// Flags overrides keys for flags the user actually set.
	Flags *pflag.FlagSet
}

// Load builds a Config from every layer.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}
	uploads, err := xdg.UploadsDir()
	if err != nil {
		return nil, err
	}
	if err := k.Set("uploads.dir", uploads); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", "uploads.dir").Wrap(err)
	}

	if err := loadFile(k, opts.ConfigFile); err != nil {
		return nil, err
	}

	if err := loadDotEnv(opts.DotEnv); err != nil {
		return nil, err
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", "database.url").Wrap(err)
		}
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		def, err := xdg.ConfigFile()
		if err != nil {
			return nil //nolint:nilerr // no home directory means no default file
		}
		path = def
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("file", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("file", path).Wrap(err)
	}
	return nil
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("CONFIG_LOAD_FAILED").With("file", path).Wrap(err)
	}
	return nil
}

// envKey maps SHELFKEEP_AUTH__TOKEN_TTL to auth.token_ttl. Comma separated
// values become lists.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

// Validate checks settings every command relies on.
func (c *Config) Validate() error {
	switch {
	case c.Auth.TokenTTL <= 0:
		return invalid("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	case c.Auth.StoreTimeout < 0:
		return invalid("auth.store_timeout must not be negative, got %s", c.Auth.StoreTimeout)
	case c.Auth.SweepInterval < 0:
		return invalid("auth.sweep_interval must not be negative, got %s", c.Auth.SweepInterval)
	case !logging.ValidFormat(c.Log.Format):
		return invalid("log.format must be 'json' or 'text', got %q", c.Log.Format)
	case c.Uploads.MaxBytes <= 0:
		return invalid("uploads.max_bytes must be positive, got %d", c.Uploads.MaxBytes)
	case c.Database.MaxConns < 0:
		return invalid("database.max_conns must not be negative, got %d", c.Database.MaxConns)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// RequireDatabase reports an error when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return invalid("database.url is required (set DATABASE_URL or %sDATABASE__URL)", EnvPrefix)
	}
	return nil
}

// Roles returns the role table the access policy should use.
func (c *Config) Roles(defaultRoles func() map[string][]string) map[string][]string {
	if len(c.Access.Roles) == 0 && c.Access.DefaultRoles && defaultRoles != nil {
		return defaultRoles()
	}
	return c.Access.Roles
}

func invalid(format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").Errorf(format, args...)
}
