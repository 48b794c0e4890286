package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordRuleDuration(ctx context.Context, ms float64)
	IncrementRuleCount(ctx context.Context, outcome string)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordRuleDuration(context.Context, float64) {}
func (NoopInstrumentation) IncrementRuleCount(context.Context, string)  {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64) {}
