package main

import (
	"fmt"

	"github.com/guillermoBallester/stagecheck/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultEnvFile = ".env"

// rootOptions is shared by every subcommand. cfg is populated in
// PersistentPreRunE, after flags are parsed.
type rootOptions struct {
	envFile string
	cfg     *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "stagecheck",
		Short: "Validate PostgreSQL staging tables before they are promoted",
		Long: `stagecheck runs a catalogue of declarative data-quality rules (allowed values,
non-null, uniqueness, column types, date offsets) against a staging schema and
reports every violation it finds.

Connection settings come from PG_* environment variables, optionally loaded
from a .env file; flags override both.

Exit status: 0 when every rule passes, 1 when any rule fails or errors,
2 on configuration or connection errors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			explicit := cmd.Flags().Changed("env-file")
			if err := config.LoadEnvFile(opts.envFile, explicit); err != nil {
				return err
			}
			cfg, err := config.Load(overridesFromFlags(cmd.Flags()))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd, opts)
		},
	}

	registerFlags(cmd.PersistentFlags(), opts)

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newRulesCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

func registerFlags(fs *pflag.FlagSet, opts *rootOptions) {
	fs.StringVar(&opts.envFile, "env-file", defaultEnvFile, "load environment variables from this file")

	fs.String("host", "", "database host (PG_HOST)")
	fs.Int("port", 5432, "database port (PG_PORT)")
	fs.String("database", "", "database name (PG_DATABASE_GEORGIA)")
	fs.String("user", "", "database user (PG_USER)")
	fs.String("sslmode", "prefer", "sslmode (PG_SSLMODE)")
	fs.String("schema", "staging", "schema unqualified table names resolve against (PG_SCHEMA)")

	fs.Duration("query-timeout", 0, "per-rule query timeout, e.g. 30s (QUERY_TIMEOUT)")
	fs.Int("max-rows", 0, "offending rows kept as evidence per rule (MAX_ROWS)")
	fs.String("rules", "", "YAML rule catalogue and masking policy (RULES_FILE)")
	fs.StringSlice("only", nil, "run only these rule ids (comma separated)")

	fs.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	fs.String("format", "text", "report format: text or json")

	fs.Bool("otel", false, "export traces and metrics over OTLP (OTEL_ENABLED)")
	fs.String("audit-log", "", "append one NDJSON line per rule query to this file (AUDIT_LOG)")
}

// overridesFromFlags turns explicitly set flags into config overrides.
// Flags left at their defaults never shadow environment variables.
func overridesFromFlags(fs *pflag.FlagSet) config.Overrides {
	var o config.Overrides

	o.Host = changedString(fs, "host")
	o.Database = changedString(fs, "database")
	o.User = changedString(fs, "user")
	o.SSLMode = changedString(fs, "sslmode")
	o.Schema = changedString(fs, "schema")
	o.RulesFile = changedString(fs, "rules")
	o.LogLevel = changedString(fs, "log-level")
	o.Format = changedString(fs, "format")
	o.HTTPAddr = changedString(fs, "http-addr")
	o.HTTPToken = changedString(fs, "http-bearer-token")

	if fs.Changed("port") {
		v, _ := fs.GetInt("port")
		o.Port = &v
	}
	if fs.Changed("max-rows") {
		v, _ := fs.GetInt("max-rows")
		o.MaxRows = &v
	}
	if fs.Changed("query-timeout") {
		v, _ := fs.GetDuration("query-timeout")
		o.QueryTimeout = &v
	}

	o.OnlyRules, _ = fs.GetStringSlice("only")
	o.OTelEnabled, _ = fs.GetBool("otel")
	o.AuditLog, _ = fs.GetString("audit-log")

	return o
}

// changedString returns the flag's value only when it was set explicitly.
// Unknown flags (e.g. serve-only flags on other commands) yield nil.
func changedString(fs *pflag.FlagSet, name string) *string {
	if fs.Lookup(name) == nil || !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetString(name)
	return &v
}
