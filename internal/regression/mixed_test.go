package regression

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

// exactLinesDataset builds three groups of five seasons each lying exactly on
// parallel lines with slope 0.4 and intercepts 0.3, 0.5, 0.4.
func exactLinesDataset(t *testing.T) *domain.Dataset {
	t.Helper()
	xs := []float64{0.40, 0.45, 0.50, 0.55, 0.60}
	intercepts := map[string]float64{"A": 0.3, "B": 0.5, "C": 0.4}

	var obs []domain.Observation
	for _, g := range []string{"A", "B", "C"} {
		for i, x := range xs {
			obs = append(obs, domain.Observation{
				Group:  g,
				Period: 2000 + i,
				X:      x,
				Y:      intercepts[g] + 0.4*x,
			})
		}
	}
	ds, err := domain.NewDataset(obs)
	if err != nil {
		t.Fatalf("building dataset: %v", err)
	}
	return ds
}

// sharedLineDataset builds groups from one shared line plus deterministic
// zero-mean noise. The per-group slope deviations are induced by a component
// proportional to the centered predictor, so group coefficient deviations
// stay rank-one and the true random-effect structure is exactly the kind the
// model assumes. amps controls each group's deviation; residual holds the
// common within-group noise amplitude.
func sharedLineDataset(t *testing.T, amps []float64, residual float64) *domain.Dataset {
	t.Helper()
	xs := []float64{0.30, 0.35, 0.40, 0.45, 0.50, 0.55, 0.60, 0.65}
	// Zero mean and orthogonal to the centered predictor.
	r := []float64{1, -1, -1, 1, 1, -1, -1, 1}

	meanX := 0.475
	var obs []domain.Observation
	for j, amp := range amps {
		group := fmt.Sprintf("G%d", j)
		for i, x := range xs {
			y := 0.2 + 0.5*x + amp*(x-meanX) + residual*r[i]
			obs = append(obs, domain.Observation{Group: group, Period: 1990 + i, X: x, Y: y})
		}
	}
	ds, err := domain.NewDataset(obs)
	if err != nil {
		t.Fatalf("building dataset: %v", err)
	}
	return ds
}

func TestFitMixed_ExactParallelLines(t *testing.T) {
	ds := exactLinesDataset(t)

	fit, err := FitMixed(ds, MixedOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No noise anywhere: residual variance collapses to zero and no genuine
	// slope heterogeneity exists, while the intercept spread is real.
	if fit.Components.Resid > 1e-9 {
		t.Errorf("residual variance should collapse to zero, got %v", fit.Components.Resid)
	}
	if fit.Components.SlopeVar() > 1e-6 {
		t.Errorf("slope variance should collapse to zero, got %v", fit.Components.SlopeVar())
	}
	if fit.Components.InterceptVar() < 1e-5 {
		t.Errorf("intercept variance should stay positive, got %v", fit.Components.InterceptVar())
	}

	assertNear(t, "fixed slope", 0.4, fit.Fixed.Slope, 1e-3)
	assertNear(t, "fixed intercept", 0.4, fit.Fixed.Intercept, 1e-3)

	want := map[string]float64{"A": 0.3, "B": 0.5, "C": 0.4}
	for g, intercept := range want {
		est, ok := fit.Groups[g]
		if !ok {
			t.Fatalf("missing group %q in hierarchical fit", g)
		}
		assertNear(t, g+" intercept", intercept, est.Intercept, 1e-2)
		assertNear(t, g+" slope", 0.4, est.Slope, 1e-3)
	}
}

func TestFitMixed_ExactHeterogeneousLines(t *testing.T) {
	// Every group lies exactly on its own line with a different slope. The
	// residual variance collapses, and the reported covariance must come out
	// as the spread of the observed lines: positive slope variance here, in
	// contrast to the parallel-lines case above where it vanishes.
	xs := []float64{0.40, 0.45, 0.50, 0.55, 0.60}
	lines := map[string][2]float64{
		"A": {0.30, 0.35},
		"B": {0.10, 0.75},
		"C": {0.20, 0.55},
	}

	var obs []domain.Observation
	for g, line := range lines {
		for i, x := range xs {
			obs = append(obs, domain.Observation{
				Group:  g,
				Period: 2000 + i,
				X:      x,
				Y:      line[0] + line[1]*x,
			})
		}
	}
	ds, err := domain.NewDataset(obs)
	if err != nil {
		t.Fatalf("building dataset: %v", err)
	}

	fit, err := FitMixed(ds, MixedOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fit.Components.Resid > 1e-9 {
		t.Errorf("residual variance should collapse to zero, got %v", fit.Components.Resid)
	}
	// Exact lines are observed directly, so the components are the sample
	// covariance of the three (intercept, slope) pairs.
	assertNear(t, "intercept variance", 0.01, fit.Components.InterceptVar(), 1e-6)
	assertNear(t, "slope variance", 0.04, fit.Components.SlopeVar(), 1e-6)

	for g, line := range lines {
		est, ok := fit.Groups[g]
		if !ok {
			t.Fatalf("missing group %q in hierarchical fit", g)
		}
		assertNear(t, g+" intercept", line[0], est.Intercept, 1e-2)
		assertNear(t, g+" slope", line[1], est.Slope, 1e-3)
		if !est.Degenerate {
			t.Errorf("%s: exact fit should be flagged degenerate", g)
		}
	}
}

func TestFitMixed_ShrinkageTowardPooled(t *testing.T) {
	// The residual amplitude must stay small relative to the slope spread:
	// per-group slope sampling variance is sigma^2/Sxx, and when it exceeds
	// the between-group slope variance REML correctly collapses the latter
	// to zero and every hierarchical slope equals the pooled one. Here the
	// spread (~6e-4) dominates the sampling variance (~2e-4), so the
	// between-group component is identified and shrinkage is strict.
	amps := []float64{0.02, -0.01, 0.03, -0.04, 0.0, 0.01}
	ds := sharedLineDataset(t, amps, 0.004)

	fit, err := FitMixed(ds, MixedOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	xs, ys := ds.XY()
	pooled, err := FitOLS(xs, ys)
	if err != nil {
		t.Fatalf("pooled fit: %v", err)
	}

	for group, obs := range ds.ByGroup() {
		unpooled, err := FitGroupOLS(group, obs)
		if err != nil {
			t.Fatalf("unpooled fit for %s: %v", group, err)
		}
		hier, ok := fit.Groups[group]
		if !ok {
			t.Fatalf("missing group %q in hierarchical fit", group)
		}

		du := unpooled.Slope - pooled.Slope
		dh := hier.Slope - pooled.Slope
		if du == 0 {
			t.Fatalf("%s: unpooled equals pooled, dataset does not exercise shrinkage", group)
		}
		// Strictly between: same side of the pooled slope, strictly closer
		// to it, and not equal to the unpooled estimate.
		if du*dh <= 0 {
			t.Errorf("%s: hierarchical slope %v on wrong side of pooled %v (unpooled %v)",
				group, hier.Slope, pooled.Slope, unpooled.Slope)
		}
		if math.Abs(dh) >= math.Abs(du) {
			t.Errorf("%s: hierarchical slope %v not shrunk from unpooled %v toward pooled %v",
				group, hier.Slope, unpooled.Slope, pooled.Slope)
		}
	}

	// Heavier-deviation groups carry the same design here, but the estimate
	// must still report positive uncertainty for every group.
	for group, est := range fit.Groups {
		if est.SlopeSE <= 0 {
			t.Errorf("%s: expected positive slope SE, got %v", group, est.SlopeSE)
		}
	}
}

func TestFitMixed_REMLDegreesOfFreedomCorrection(t *testing.T) {
	// Three identical groups: the between-group signal is exactly zero, so
	// both objectives collapse the variance components and the weighted
	// residual sum of squares is invariant in the collapse. The two residual
	// variances then differ by exactly n/(n-p).
	xs := make([]float64, 10)
	for i := range xs {
		xs[i] = 0.3 + 0.04*float64(i)
	}
	r := []float64{1, -1, 2, -2, 1, -1, -1, 1, -2, 2}

	var obs []domain.Observation
	for _, g := range []string{"A", "B", "C"} {
		for i, x := range xs {
			obs = append(obs, domain.Observation{
				Group:  g,
				Period: 2000 + i,
				X:      x,
				Y:      0.25 + 0.45*x + 0.02*r[i],
			})
		}
	}
	ds, err := domain.NewDataset(obs)
	if err != nil {
		t.Fatalf("building dataset: %v", err)
	}

	reml, err := FitMixed(ds, MixedOptions{Method: REML})
	if err != nil {
		t.Fatalf("REML fit: %v", err)
	}
	ml, err := FitMixed(ds, MixedOptions{Method: ML})
	if err != nil {
		t.Fatalf("ML fit: %v", err)
	}

	n := float64(ds.Len())
	wantRatio := n / (n - 2)
	gotRatio := reml.Components.Resid / ml.Components.Resid
	assertNear(t, "REML/ML residual variance ratio", wantRatio, gotRatio, 1e-6)
}

func TestFitMixed_SingleGroupIsDegenerate(t *testing.T) {
	var obs []domain.Observation
	for i := 0; i < 5; i++ {
		obs = append(obs, domain.Observation{
			Group:  "A",
			Period: 2000 + i,
			X:      0.4 + 0.05*float64(i),
			Y:      0.3 + 0.4*(0.4+0.05*float64(i)),
		})
	}
	ds, err := domain.NewDataset(obs)
	if err != nil {
		t.Fatalf("building dataset: %v", err)
	}

	_, err = FitMixed(ds, MixedOptions{})
	var dge *domain.DegenerateGroupingError
	if !errors.As(err, &dge) {
		t.Fatalf("expected DegenerateGroupingError, got %v", err)
	}
	if dge.Groups != 1 {
		t.Errorf("expected 1 group in error, got %d", dge.Groups)
	}
}

func TestFitMixed_IterationBudgetExhausted(t *testing.T) {
	ds := sharedLineDataset(t, []float64{0.02, -0.01, 0.03, -0.04}, 0.02)

	_, err := FitMixed(ds, MixedOptions{MaxIter: 2})
	var ce *domain.ConvergenceError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConvergenceError, got %v", err)
	}
	if ce.Iterations == 0 {
		t.Error("convergence error should carry the iteration count")
	}
	if ce.LastObjective == 0 {
		t.Error("convergence error should carry the last objective value")
	}
}

func TestFitMixed_SingleObservationGroupStaysInLikelihood(t *testing.T) {
	ds := sharedLineDataset(t, []float64{0.02, -0.01, 0.03}, 0.02)
	obs := ds.Observations()
	obs = append(obs, domain.Observation{Group: "LONER", Period: 1990, X: 0.5, Y: 0.47})
	ds, err := domain.NewDataset(obs)
	if err != nil {
		t.Fatalf("building dataset: %v", err)
	}

	fit, err := FitMixed(ds, MixedOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	est, ok := fit.Groups["LONER"]
	if !ok {
		t.Fatal("single-observation group missing from hierarchical fit")
	}
	if math.IsNaN(est.Slope) || math.IsNaN(est.SlopeSE) {
		t.Errorf("single-observation group produced non-finite estimate: %+v", est)
	}
	if len(fit.Groups) != 4 {
		t.Errorf("expected 4 groups in hierarchical fit, got %d", len(fit.Groups))
	}
}
