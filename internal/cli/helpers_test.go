package cli

import (
	"strings"
	"testing"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

func sampleComparison() *domain.Comparison {
	pooled := domain.CoefficientEstimate{Intercept: 0.1, Slope: 0.80, SlopeSE: 0.02}
	rows := []domain.ComparisonRow{
		{Group: "ATL", Estimator: domain.EstimatorPooled, Estimate: pooled},
		{Group: "ATL", Estimator: domain.EstimatorUnpooled, Estimate: domain.CoefficientEstimate{Slope: 0.70, SlopeSE: 0.05}},
		{Group: "ATL", Estimator: domain.EstimatorHierarchical, Estimate: domain.CoefficientEstimate{Slope: 0.75, SlopeSE: 0.03}},
		{Group: "BOS", Estimator: domain.EstimatorPooled, Estimate: pooled},
		{Group: "BOS", Estimator: domain.EstimatorUnpooled, Estimate: domain.CoefficientEstimate{Slope: 0.95, SlopeSE: 0.05}},
		{Group: "BOS", Estimator: domain.EstimatorHierarchical, Estimate: domain.CoefficientEstimate{Slope: 0.90, SlopeSE: 0.03}},
		{Group: "CHC", Estimator: domain.EstimatorPooled, Estimate: pooled},
	}
	return &domain.Comparison{
		Rows:        rows,
		Pooled:      pooled,
		GroupsTotal: 3,
		Skipped:     []domain.GroupDiagnostic{{Group: "CHC", Reason: "only 1 observation(s), minimum 2"}},
	}
}

func TestOrderRowsByHierarchicalSlope(t *testing.T) {
	ordered := orderRows(sampleComparison())

	if len(ordered) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(ordered))
	}

	// BOS has the steeper hierarchical slope and must come first. CHC has
	// no hierarchical row and sorts last.
	if ordered[0].Group != "BOS" {
		t.Errorf("expected BOS first, got %s", ordered[0].Group)
	}
	if ordered[3].Group != "ATL" {
		t.Errorf("expected ATL second, got %s", ordered[3].Group)
	}
	if ordered[6].Group != "CHC" {
		t.Errorf("expected CHC last, got %s", ordered[6].Group)
	}
}

func TestFormatEstimate(t *testing.T) {
	got := formatEstimate(domain.CoefficientEstimate{Slope: 0.8, SlopeSE: 0.05})
	if got != "0.8000 [0.7000, 0.9000]" {
		t.Errorf("unexpected interval rendering: %q", got)
	}

	got = formatEstimate(domain.CoefficientEstimate{Slope: 0.8, Degenerate: true})
	if !strings.Contains(got, "exact fit") {
		t.Errorf("degenerate estimate should be flagged: %q", got)
	}
}

func TestPrintComparisonMentionsSkippedGroups(t *testing.T) {
	var buf strings.Builder
	printComparison(&buf, sampleComparison())

	out := buf.String()
	if !strings.Contains(out, "skipped CHC") {
		t.Errorf("output should report the skipped group:\n%s", out)
	}
	if !strings.Contains(out, "Pooled slope") {
		t.Errorf("output should report the pooled slope:\n%s", out)
	}
}

func TestBuildSavedRun(t *testing.T) {
	cmp := sampleComparison()
	cmp.IntervalsWidened = 1
	cmp.CrossedPooled = 0

	run := buildSavedRun(cmp, 1.83, 2)

	if run.Summary.ID == "" {
		t.Error("saved run must get an ID")
	}
	if run.Summary.Exponent != 1.83 || run.Summary.MinSeasons != 2 {
		t.Errorf("unexpected summary: %+v", run.Summary)
	}
	if run.Summary.GroupsSkipped != 1 {
		t.Errorf("expected 1 skipped group, got %d", run.Summary.GroupsSkipped)
	}
	if run.Summary.PooledSlope != cmp.Pooled.Slope {
		t.Error("summary must carry the pooled slope")
	}
	if len(run.Rows) != len(cmp.Rows) {
		t.Error("saved run must carry the full row table")
	}
	if run.Summary.CreatedAt.IsZero() {
		t.Error("saved run must be timestamped")
	}
}

func TestBuildExportRun(t *testing.T) {
	cmp := sampleComparison()
	saved := buildSavedRun(cmp, 1.83, 2)
	saved.Components = domain.VarianceComponents{
		Sigma: [2][2]float64{{0.01, 0.002}, {0.002, 0.04}},
		Resid: 0.001,
	}

	out := buildExportRun(saved)

	if out.ID != saved.Summary.ID {
		t.Error("export must carry the run ID")
	}
	if out.SlopeVar != 0.04 || out.ResidualVar != 0.001 {
		t.Errorf("unexpected variance components: %+v", out)
	}
	if len(out.Rows) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(out.Rows))
	}
	first := out.Rows[0]
	if first.SlopeLower >= first.Slope || first.SlopeUpper <= first.Slope {
		t.Errorf("interval must bracket the slope: %+v", first)
	}
}
