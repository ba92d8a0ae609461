package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/guillermoBallester/querygate"

// Instruments holds pre-created OTel metric instruments. It implements
// port.Instrumentation.
type Instruments struct {
	QueryCount    metric.Int64Counter
	QueryDuration metric.Float64Histogram
	QueryErrors   metric.Int64Counter
	Rejections    metric.Int64Counter
	ToolDuration  metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return NewInstrumentsFromMeter(otel.Meter(instrumentationName))
}

// NewInstrumentsFromMeter creates the instruments on an explicit meter.
func NewInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// The OTel API returns usable noop instruments alongside any error.
	queryCount, _ := meter.Int64Counter("querygate.query.count",
		metric.WithDescription("Admitted SQL queries executed successfully"),
	)
	queryDuration, _ := meter.Float64Histogram("querygate.query.duration",
		metric.WithDescription("SQL query execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryErrors, _ := meter.Int64Counter("querygate.query.errors",
		metric.WithDescription("Admitted SQL queries that failed during execution"),
	)
	rejections, _ := meter.Int64Counter("querygate.admission.rejections",
		metric.WithDescription("Queries refused before execution, by reason code"),
	)
	toolDuration, _ := meter.Float64Histogram("querygate.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		QueryCount:    queryCount,
		QueryDuration: queryDuration,
		QueryErrors:   queryErrors,
		Rejections:    rejections,
		ToolDuration:  toolDuration,
	}
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.QueryDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.QueryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) IncrementRejections(ctx context.Context, reason string) {
	i.Rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("querygate.reason", reason)))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
