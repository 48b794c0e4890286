package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/guillermoBallester/stagecheck/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const closeTimeout = 5 * time.Second

// Runner executes a rule catalogue against one session and collects a report.
// Rules run sequentially in catalogue order; a rule-level error never stops
// the run, a lost connection always does.
type Runner struct {
	provider  port.ConnectionProvider
	validator port.QueryValidator
	auditor   port.QueryAuditor
	logger    *slog.Logger
	masks     domain.MaskSpec // table -> column -> mask (nil = no masking)
	maxRows   int
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewRunner(provider port.ConnectionProvider, validator port.QueryValidator, auditor port.QueryAuditor, logger *slog.Logger, masks domain.MaskSpec, maxRows int, tracer trace.Tracer, inst port.Instrumentation) *Runner {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &Runner{
		provider:  provider,
		validator: validator,
		auditor:   auditor,
		logger:    logger,
		masks:     masks,
		maxRows:   maxRows,
		tracer:    tracer,
		inst:      inst,
	}
}

// Run validates the catalogue, opens a session and executes every rule.
// The returned error is non-nil only for catalogue and connection problems
// (or cancellation); rule failures live in the report. When a run aborts
// midway the partial report is returned alongside the error.
func (r *Runner) Run(ctx context.Context, rules []domain.Rule) (*domain.Report, error) {
	if err := domain.ValidateCatalog(rules); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.Int("stagecheck.rules", len(rules)),
		),
	)
	defer span.End()

	report := &domain.Report{StartedAt: time.Now()}
	defer func() { report.FinishedAt = time.Now() }()

	session, err := r.provider.Acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, domain.ErrConnection) {
			err = fmt.Errorf("%w: %w", domain.ErrConnection, err)
		}
		return nil, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			r.logger.WarnContext(ctx, "closing session", slog.String("error", err.Error()))
		}
	}()

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "run cancelled")
			return report, fmt.Errorf("run cancelled before rule %q: %w", rule.ID, err)
		}

		res := r.runRule(ctx, session, rule)
		report.Results = append(report.Results, res)

		if res.Err != nil && !session.Alive() {
			err := fmt.Errorf("%w: session lost during rule %q: %w", domain.ErrConnection, rule.ID, res.Err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, err
		}
	}

	counts := report.Counts()
	span.SetAttributes(
		attribute.Int("stagecheck.passed", counts[domain.OutcomePass]),
		attribute.Int("stagecheck.failed", len(rules)-counts[domain.OutcomePass]),
	)
	return report, nil
}

// runRule executes one rule and always returns a result. Panics inside the
// rule are recovered into an execution error.
func (r *Runner) runRule(ctx context.Context, session port.Session, rule domain.Rule) (res domain.ValidationResult) {
	ctx, span := r.tracer.Start(ctx, "Runner.Rule",
		trace.WithAttributes(
			attribute.String("stagecheck.rule.id", rule.ID),
			attribute.String("stagecheck.rule.kind", string(rule.Kind)),
			attribute.String("db.collection.name", rule.Table.String()),
		),
	)
	defer span.End()

	start := time.Now()
	var sql string
	var rowCount int

	defer func() {
		if p := recover(); p != nil {
			res = domain.ErrorResult(rule, fmt.Errorf("%w: rule panicked: %v", domain.ErrExecution, p))
		}
		res.Duration = time.Since(start)
		r.finish(ctx, span, res, sql, rowCount)
	}()

	q, err := domain.Compile(rule, r.maxRows)
	if err != nil {
		return domain.ErrorResult(rule, err)
	}
	sql = q.SQL
	span.SetAttributes(attribute.String("db.statement", sql))

	if err := r.validator.Validate(q.SQL); err != nil {
		return domain.ErrorResult(rule, fmt.Errorf("compiled query rejected: %w", err))
	}

	rows, err := session.Query(ctx, q)
	rowCount = len(rows)
	if err != nil {
		return domain.ErrorResult(rule, err)
	}

	res = domain.Evaluate(rule, rows, r.maxRows)
	domain.MaskRows(res.OffendingRows, r.masks.For(rule.Table))
	return res
}

// finish records the audit entry, metrics, span status and log line for one rule.
func (r *Runner) finish(ctx context.Context, span trace.Span, res domain.ValidationResult, sql string, rowCount int) {
	durationMS := res.Duration.Milliseconds()
	r.inst.RecordRuleDuration(ctx, float64(durationMS))
	r.inst.IncrementRuleCount(ctx, string(res.Outcome))

	if sql != "" {
		r.auditor.Record(ctx, port.AuditEntry{
			RuleID:       res.Rule.ID,
			SQL:          sql,
			RowsReturned: rowCount,
			DurationMS:   durationMS,
			Outcome:      string(res.Outcome),
			Err:          res.Err,
		})
	}

	span.SetAttributes(
		attribute.String("stagecheck.rule.outcome", string(res.Outcome)),
		attribute.Int("db.response.rows", rowCount),
	)

	attrs := []any{
		slog.String("rule", res.Rule.ID),
		slog.String("kind", string(res.Rule.Kind)),
		slog.String("outcome", string(res.Outcome)),
		slog.Int64("duration_ms", durationMS),
	}

	switch res.Outcome {
	case domain.OutcomePass:
		r.logger.InfoContext(ctx, "rule passed", attrs...)
	case domain.OutcomeFail:
		span.SetStatus(codes.Error, "validation failure")
		attrs = append(attrs, slog.Int("offending_rows", len(res.OffendingRows)), slog.Bool("truncated", res.Truncated))
		r.logger.WarnContext(ctx, "rule failed", attrs...)
	default:
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		attrs = append(attrs, slog.String("error", res.Err.Error()))
		r.logger.ErrorContext(ctx, "rule errored", attrs...)
	}
}
