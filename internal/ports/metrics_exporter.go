package ports

import "context"

// FitMetrics describes one completed comparison run for instrumentation.
type FitMetrics struct {
	Exponent        float64
	Groups          int
	GroupsSkipped   int
	REMLIterations  int
	DurationSeconds float64
	Saved           bool
}

// MetricsExporter ships fit metrics to a collector.
type MetricsExporter interface {
	ExportFitMetrics(ctx context.Context, m *FitMetrics) error
	// Close shuts down the exporter and flushes any pending metrics.
	Close(ctx context.Context) error
}
