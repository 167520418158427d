package domain

import "time"

// Estimator identifies which of the three fitting strategies produced a row.
type Estimator string

const (
	EstimatorPooled       Estimator = "pooled"
	EstimatorUnpooled     Estimator = "unpooled"
	EstimatorHierarchical Estimator = "hierarchical"
)

// ComparisonRow is one (group, estimator) cell of the comparison table. The
// pooled estimate is replicated across groups so consumers can facet by group
// without joining against the population-level estimate.
type ComparisonRow struct {
	Group     string
	Estimator Estimator
	Estimate  CoefficientEstimate
}

// GroupDiagnostic records why a group was excluded from per-group fitting.
// The group still contributes its observations to the hierarchical fit.
type GroupDiagnostic struct {
	Group  string
	Reason string
}

// GroupContrast holds the derived per-group comparison of the unpooled and
// hierarchical estimates against the pooled one.
type GroupContrast struct {
	Group string

	UnpooledCIWidth     float64
	HierarchicalCIWidth float64

	// IntervalWidened is true when the hierarchical interval for this group
	// is wider than its unpooled interval.
	IntervalWidened bool

	// CrossedPooled is true when partial pooling moved the slope estimate to
	// the opposite side of the pooled slope.
	CrossedPooled bool
}

// Comparison is the immutable result of one assembler run: the full row
// table plus the population-level estimate, the estimated variance
// components, and aggregate diagnostics.
type Comparison struct {
	Rows       []ComparisonRow
	Pooled     CoefficientEstimate
	Components VarianceComponents
	Contrasts  []GroupContrast
	Skipped    []GroupDiagnostic

	GroupsTotal      int
	IntervalsWidened int
	CrossedPooled    int

	REMLIterations int
}

// RowsFor returns the rows for one estimator, in table order.
func (c *Comparison) RowsFor(e Estimator) []ComparisonRow {
	var rows []ComparisonRow
	for _, r := range c.Rows {
		if r.Estimator == e {
			rows = append(rows, r)
		}
	}
	return rows
}

// RunSummary is the stored header of a saved comparison run.
type RunSummary struct {
	ID               string
	Exponent         float64
	MinSeasons       int
	GroupsTotal      int
	GroupsSkipped    int
	IntervalsWidened int
	CrossedPooled    int
	PooledSlope      float64
	CreatedAt        time.Time
}

// SavedRun is a persisted comparison: summary header plus the full table.
type SavedRun struct {
	Summary    RunSummary
	Pooled     CoefficientEstimate
	Components VarianceComponents
	Rows       []ComparisonRow
}
