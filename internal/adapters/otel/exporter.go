package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/emiliopalmerini/pennant/internal/ports"
)

const (
	serviceName    = "pennant"
	serviceVersion = "1.0.0"
)

// Exporter exports fit metrics to an OTEL Collector.
type Exporter struct {
	provider       *sdkmetric.MeterProvider
	meter          metric.Meter
	runsTotal      metric.Int64Counter
	groupsSkipped  metric.Int64Counter
	iterationsHist metric.Int64Histogram
	durationHist   metric.Float64Histogram
}

// NewExporter creates a new OTEL metrics exporter.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	runsTotal, err := meter.Int64Counter(
		"pennant_fit_runs_total",
		metric.WithDescription("Total number of comparison runs fitted"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}

	groupsSkipped, err := meter.Int64Counter(
		"pennant_groups_skipped_total",
		metric.WithDescription("Groups excluded from per-group fits"),
		metric.WithUnit("{group}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	iterationsHist, err := meter.Int64Histogram(
		"pennant_reml_iterations",
		metric.WithDescription("Optimizer iterations per variance component search"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating iterations histogram: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"pennant_fit_duration_seconds",
		metric.WithDescription("Wall time of a complete comparison run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Exporter{
		provider:       provider,
		meter:          meter,
		runsTotal:      runsTotal,
		groupsSkipped:  groupsSkipped,
		iterationsHist: iterationsHist,
		durationHist:   durationHist,
	}, nil
}

// ExportFitMetrics exports metrics for a completed comparison run.
func (e *Exporter) ExportFitMetrics(ctx context.Context, m *ports.FitMetrics) error {
	attrs := []attribute.KeyValue{
		attribute.Float64("exponent", m.Exponent),
		attribute.Int("groups", m.Groups),
		attribute.Bool("saved", m.Saved),
	}

	opt := metric.WithAttributes(attrs...)

	e.runsTotal.Add(ctx, 1, opt)
	e.groupsSkipped.Add(ctx, int64(m.GroupsSkipped), opt)
	e.iterationsHist.Record(ctx, int64(m.REMLIterations), opt)
	e.durationHist.Record(ctx, m.DurationSeconds, opt)

	return nil
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
