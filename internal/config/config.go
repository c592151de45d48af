// Package config resolves the service configuration from the environment.
//
// The configuration is read exactly once at startup. Components receive the
// resulting struct by injection and never consult the environment themselves,
// so behavior cannot drift while the service is running.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"composehook/pkg/cmdutil"
)

// Config holds the resolved service configuration. It is immutable after
// Load returns.
type Config struct {
	// Host and Port are the listener bind address.
	Host string `env:"WEBHOOK_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"WEBHOOK_PORT" envDefault:"9000"`

	// Secret is the Bearer token required on webhook requests.
	// Empty disables authentication entirely.
	Secret string `env:"WEBHOOK_SECRET"`

	// ComposeDir is the working directory for compose invocations.
	ComposeDir string `env:"COMPOSE_DIR" envDefault:"/opt/media-server"`

	// ComposeFile is the compose file name, resolved under ComposeDir
	// unless it is an absolute path.
	ComposeFile string `env:"COMPOSE_FILE" envDefault:"docker-compose.prod.yml"`

	// ComposeCommand is the compose executable as a shell-quoted string,
	// e.g. "docker compose" or "docker-compose".
	ComposeCommand string `env:"COMPOSE_COMMAND" envDefault:"docker compose"`

	// CommandTimeout bounds each compose stage. Zero means no timeout.
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT" envDefault:"0"`

	// HistoryDB is the SQLite file backing the deployment audit trail.
	// Empty disables history.
	HistoryDB string `env:"WEBHOOK_HISTORY_DB"`

	// RateLimit is the per-client-IP webhook request rate in requests per
	// second. Zero disables rate limiting.
	RateLimit int `env:"WEBHOOK_RATE_LIMIT" envDefault:"0"`

	// LogPath appends JSON logs to a file in addition to stdout.
	LogPath string `env:"WEBHOOK_LOG_PATH"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	composeArgv []string
}

// Load resolves the configuration from the environment and validates it.
// All validation problems are reported in a single error.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	argv, err := cmdutil.ParseCommandString(cfg.ComposeCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid COMPOSE_COMMAND %q: %w", cfg.ComposeCommand, err)
	}
	cfg.composeArgv = argv

	if problems := cfg.validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func (c *Config) validate() []string {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("WEBHOOK_PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.ComposeDir == "" {
		problems = append(problems, "COMPOSE_DIR must not be empty")
	}
	if c.ComposeFile == "" {
		problems = append(problems, "COMPOSE_FILE must not be empty")
	}
	if c.CommandTimeout < 0 {
		problems = append(problems, "COMMAND_TIMEOUT must not be negative")
	}
	if c.RateLimit < 0 {
		problems = append(problems, "WEBHOOK_RATE_LIMIT must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}

	return problems
}

// Addr returns the host:port the listener binds.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ComposePath returns the compose file path passed to every compose
// invocation. An absolute ComposeFile is used as-is; otherwise it is
// joined under ComposeDir.
func (c *Config) ComposePath() string {
	if filepath.IsAbs(c.ComposeFile) {
		return c.ComposeFile
	}
	return filepath.Join(c.ComposeDir, c.ComposeFile)
}

// ComposeArgv returns a copy of the parsed compose command words.
func (c *Config) ComposeArgv() []string {
	argv := make([]string, len(c.composeArgv))
	copy(argv, c.composeArgv)
	return argv
}

// AuthDisabled reports whether the webhook accepts unauthenticated requests.
func (c *Config) AuthDisabled() bool {
	return c.Secret == ""
}

// SlogLevel maps the configured level name onto a slog.Level.
// Load has already validated the name.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", name)
	}
}
