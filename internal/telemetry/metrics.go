package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/stagecheck"

// Instruments holds the run's metric instruments. It satisfies
// port.Instrumentation.
type Instruments struct {
	RuleCount    metric.Int64Counter
	RuleDuration metric.Float64Histogram
	ToolDuration metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// The SDK hands back a usable noop instrument alongside any error.
	ruleCount, _ := meter.Int64Counter("stagecheck.rule.count",
		metric.WithDescription("Validation rules executed, by outcome"),
	)
	ruleDuration, _ := meter.Float64Histogram("stagecheck.rule.duration",
		metric.WithDescription("Validation rule duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	toolDuration, _ := meter.Float64Histogram("stagecheck.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		RuleCount:    ruleCount,
		RuleDuration: ruleDuration,
		ToolDuration: toolDuration,
	}
}

func (i *Instruments) RecordRuleDuration(ctx context.Context, ms float64) {
	i.RuleDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementRuleCount(ctx context.Context, outcome string) {
	i.RuleCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
