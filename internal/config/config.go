package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database connection.
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// Rule execution.
	Schema       string        // namespace for unqualified table names (default "staging")
	QueryTimeout time.Duration // per-rule statement timeout (default 30s)
	MaxRows      int           // offending-row evidence cap per rule (default 100)
	RulesFile    string        // optional YAML rule catalogue; built-in catalogue when empty
	OnlyRules    []string      // restrict the run to these rule IDs

	// Logging and output.
	LogLevel slog.Level
	Format   string // "text" (default) or "json"

	// Observability.
	OTelEnabled bool
	AuditLog    string // path to NDJSON audit log file

	// MCP server. An empty HTTPAddr serves over stdio.
	HTTPAddr        string
	HTTPBearerToken string
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	Host         *string
	Port         *int
	Database     *string
	User         *string
	SSLMode      *string
	Schema       *string
	QueryTimeout *time.Duration
	MaxRows      *int
	RulesFile    *string
	LogLevel     *string
	Format       *string
	HTTPAddr     *string
	HTTPToken    *string
	OnlyRules    []string
	OTelEnabled  bool
	AuditLog     string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win. A missing file is only an
// error when the caller asked for it explicitly.
func LoadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		Port:         5432,
		SSLMode:      "prefer",
		Schema:       "staging",
		QueryTimeout: 30 * time.Second,
		MaxRows:      100,
		Format:       "text",
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	cfg.Host = os.Getenv("PG_HOST")
	cfg.Database = os.Getenv("PG_DATABASE_GEORGIA")
	if cfg.Database == "" {
		cfg.Database = os.Getenv("PG_DATABASE")
	}
	cfg.User = os.Getenv("PG_USER")
	cfg.Password = os.Getenv("PG_PASSWORD")

	if v := os.Getenv("PG_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PG_PORT value %q: %w", v, err)
		}
		cfg.Port = n
	}
	if v := os.Getenv("PG_SSLMODE"); v != "" {
		cfg.SSLMode = v
	}
	if v := os.Getenv("PG_SCHEMA"); v != "" {
		cfg.Schema = v
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_ROWS value %q: must be a positive integer", v)
		}
		cfg.MaxRows = n
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	cfg.RulesFile = os.Getenv("RULES_FILE")
	cfg.AuditLog = os.Getenv("AUDIT_LOG")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.Host != nil {
		cfg.Host = *o.Host
	}
	if o.Port != nil {
		cfg.Port = *o.Port
	}
	if o.Database != nil {
		cfg.Database = *o.Database
	}
	if o.User != nil {
		cfg.User = *o.User
	}
	if o.SSLMode != nil {
		cfg.SSLMode = *o.SSLMode
	}
	if o.Schema != nil {
		cfg.Schema = *o.Schema
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.RulesFile != nil {
		cfg.RulesFile = *o.RulesFile
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.Format != nil {
		cfg.Format = *o.Format
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPToken != nil {
		cfg.HTTPBearerToken = *o.HTTPToken
	}

	cfg.OnlyRules = o.OnlyRules
	if o.AuditLog != "" {
		cfg.AuditLog = o.AuditLog
	}
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// validate checks cross-field constraints that hold for every command.
// Database settings are checked separately by RequireDatabase.
func validate(cfg *Config) error {
	switch cfg.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: must be \"text\" or \"json\"", cfg.Format)
	}

	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", cfg.QueryTimeout)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid PG_PORT value %d: must be between 1 and 65535", cfg.Port)
	}

	if strings.TrimSpace(cfg.Schema) == "" {
		return fmt.Errorf("PG_SCHEMA must not be empty")
	}

	if cfg.HTTPAddr != "" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when serving over HTTP")
	}

	return nil
}

// RequireDatabase reports the missing connection settings, if any.
func (c *Config) RequireDatabase() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "PG_HOST")
	}
	if c.Database == "" {
		missing = append(missing, "PG_DATABASE_GEORGIA")
	}
	if c.User == "" {
		missing = append(missing, "PG_USER")
	}
	if c.Password == "" {
		missing = append(missing, "PG_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required (set via env vars or .env file)", strings.Join(missing, ", "))
	}
	return nil
}

// ConnString renders the connection settings as a postgres:// URL.
func (c *Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
