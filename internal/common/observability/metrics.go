// internal/common/observability/metrics.go
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider       *metric.MeterProvider
	meter               otelmetric.Meter
	deliberationCounter otelmetric.Int64Counter
	deliberationLatency otelmetric.Float64Histogram
	opinionCounter      otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	deliberationCounter, _ := meter.Int64Counter(
		"deliberations.processed",
		otelmetric.WithDescription("Number of deliberation requests processed"),
	)

	deliberationLatency, _ := meter.Float64Histogram(
		"deliberations.duration",
		otelmetric.WithDescription("Deliberation processing duration"),
		otelmetric.WithUnit("ms"),
	)

	opinionCounter, _ := meter.Int64Counter(
		"council.opinions",
		otelmetric.WithDescription("Number of council opinions collected"),
	)

	return &Observability{
		meterProvider:       provider,
		meter:               meter,
		deliberationCounter: deliberationCounter,
		deliberationLatency: deliberationLatency,
		opinionCounter:      opinionCounter,
	}
}

func (o *Observability) RecordDeliberation(ctx context.Context, mode, status string) {
	if o.deliberationCounter != nil {
		o.deliberationCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordDeliberationDuration(ctx context.Context, duration time.Duration, mode string) {
	if o.deliberationLatency != nil {
		o.deliberationLatency.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("mode", mode),
		))
	}
}

func (o *Observability) RecordOpinions(ctx context.Context, count int) {
	if o.opinionCounter != nil {
		o.opinionCounter.Add(ctx, int64(count))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
