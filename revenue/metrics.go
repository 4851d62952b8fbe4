package revenue

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/warp/revenue-engine/revenue"

// Metrics records engine and ledger activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	contractsProcessed metric.Int64Counter
	entriesRecognized  metric.Int64Counter
	operationsRejected metric.Int64Counter
	recognizedAmount   metric.Float64UpDownCounter
}

// NewMetrics creates the instruments on provider, or on the global provider
// when provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	var (
		m   Metrics
		err error
	)

	m.contractsProcessed, err = meter.Int64Counter(
		"revenue.contracts.processed",
		metric.WithDescription("Contracts run through price resolution, allocation and scheduling"),
		metric.WithUnit("{contract}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create revenue.contracts.processed counter: %w", err)
	}

	m.entriesRecognized, err = meter.Int64Counter(
		"revenue.entries.recognized",
		metric.WithDescription("Schedule entries recognized into the journal"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create revenue.entries.recognized counter: %w", err)
	}

	m.operationsRejected, err = meter.Int64Counter(
		"revenue.operations.rejected",
		metric.WithDescription("Ledger operations rejected by a recognition rule"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create revenue.operations.rejected counter: %w", err)
	}

	m.recognizedAmount, err = meter.Float64UpDownCounter(
		"revenue.recognized.amount",
		metric.WithDescription("Net amount appended to the journal"),
	)
	if err != nil {
		return nil, fmt.Errorf("create revenue.recognized.amount counter: %w", err)
	}

	return &m, nil
}

func (m *Metrics) contractProcessed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.contractsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) appended(ctx context.Context, kind string, amount float64) {
	if m == nil {
		return
	}
	if kind == "recognition" {
		m.entriesRecognized.Add(ctx, 1)
	}
	m.recognizedAmount.Add(ctx, amount, metric.WithAttributes(attribute.String("type", kind)))
}

func (m *Metrics) rejected(ctx context.Context, op string, err error) {
	if m == nil || err == nil {
		return
	}
	m.operationsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("reason", rejectionReason(err)),
	))
}
