package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/guillermoBallester/stagecheck/internal/adapter/policy"
	"github.com/guillermoBallester/stagecheck/internal/adapter/postgres"
	"github.com/guillermoBallester/stagecheck/internal/audit"
	"github.com/guillermoBallester/stagecheck/internal/config"
	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/guillermoBallester/stagecheck/internal/core/port"
	"github.com/guillermoBallester/stagecheck/internal/core/service"
	"github.com/guillermoBallester/stagecheck/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// app is everything a command needs, wired from one Config.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	policy  *policy.Policy
	catalog []domain.Rule
	schema  string

	tracer  trace.Tracer
	inst    *telemetry.Instruments
	otel    *telemetry.Provider
	auditor port.QueryAuditor
}

// newApp loads the policy and catalogue and sets up logging, telemetry and
// auditing. It never touches the database. Callers must Close the app.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	// Logs go to stderr; stdout carries the report or the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	a := &app{
		cfg:     cfg,
		logger:  logger,
		policy:  &policy.Policy{},
		schema:  cfg.Schema,
		tracer:  telemetry.NoopTracer(),
		inst:    telemetry.NoopInstruments(),
		auditor: audit.NoopAuditor{},
	}

	if cfg.RulesFile != "" {
		pol, err := policy.LoadFromFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("loading rules: %w", err)
		}
		a.policy = pol
		if pol.Schema != "" {
			a.schema = pol.Schema
		}
		logger.Info("rules file loaded", slog.String("file", cfg.RulesFile), slog.Int("rules", len(pol.Rules)))
	}

	catalog, err := a.policy.Catalog(a.schema)
	if err != nil {
		return nil, fmt.Errorf("building rule catalogue: %w", err)
	}
	a.catalog = catalog

	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "stagecheck", version)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.otel = provider
		a.tracer = otel.Tracer("github.com/guillermoBallester/stagecheck")
		a.inst = telemetry.NewInstruments()
		logger.Info("opentelemetry enabled")
	}

	if cfg.AuditLog != "" {
		auditor, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		a.auditor = auditor
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	return a, nil
}

// provider returns the connection provider, failing fast when the
// connection settings are incomplete.
func (a *app) provider() (*postgres.Provider, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	a.logger.Info("database target",
		slog.String("db.system", "postgresql"),
		slog.String("dsn", redactDSN(a.cfg.ConnString())),
		slog.String("schema", a.schema),
	)
	return postgres.NewProvider(a.cfg.ConnString(), a.cfg.QueryTimeout), nil
}

func (a *app) runner(provider port.ConnectionProvider) *service.Runner {
	return service.NewRunner(
		provider,
		domain.NewPgQueryValidator(),
		a.auditor,
		a.logger,
		a.policy.MaskSpec(),
		a.cfg.MaxRows,
		a.tracer,
		a.inst,
	)
}

func (a *app) explorer(provider *postgres.Provider) port.SchemaExplorer {
	return policy.NewPolicyExplorer(postgres.NewExplorer(provider, a.schema), a.policy)
}

// Close flushes telemetry and the audit log.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.auditor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing audit log: %w", err))
	}
	if err := a.otel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// redactDSN masks the password in a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
