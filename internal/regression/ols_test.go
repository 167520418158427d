package regression

import (
	"errors"
	"math"
	"testing"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

func TestFitOLS_KnownSample(t *testing.T) {
	// Hand-computed: meanX=2.5, meanY=5.0, Sxx=5, Sxy=9.7, SSR=0.082.
	xs := []float64{1, 2, 3, 4}
	ys := []float64{2.1, 3.9, 6.2, 7.8}

	fit, err := FitOLS(xs, ys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertNear(t, "slope", 1.94, fit.Slope, 1e-9)
	assertNear(t, "intercept", 0.15, fit.Intercept, 1e-9)
	assertNear(t, "residual variance", 0.041, fit.ResidualVariance, 1e-9)
	assertNear(t, "slope SE", math.Sqrt(0.041/5), fit.SlopeSE, 1e-9)
	if fit.Degenerate {
		t.Error("noisy sample flagged degenerate")
	}
}

func TestFitOLS_ExactLine(t *testing.T) {
	xs := []float64{0.40, 0.45, 0.50, 0.55, 0.60}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 0.3 + 0.4*x
	}

	fit, err := FitOLS(xs, ys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertNear(t, "slope", 0.4, fit.Slope, 1e-12)
	assertNear(t, "intercept", 0.3, fit.Intercept, 1e-12)
	if !fit.Degenerate {
		t.Error("exact fit not flagged degenerate")
	}
	if fit.SlopeSE != 0 {
		t.Errorf("exact fit should report zero SE, got %v", fit.SlopeSE)
	}
}

func TestFitOLS_TwoPoints(t *testing.T) {
	fit, err := FitOLS([]float64{1, 2}, []float64{3, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertNear(t, "slope", 2, fit.Slope, 1e-12)
	assertNear(t, "intercept", 1, fit.Intercept, 1e-12)
	if !fit.Degenerate || fit.SlopeSE != 0 {
		t.Error("two-point fit must be degenerate with zero SE")
	}
}

func TestFitOLS_Singular(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		ys   []float64
	}{
		{name: "empty", xs: nil, ys: nil},
		{name: "single point", xs: []float64{1}, ys: []float64{2}},
		{name: "constant predictor", xs: []float64{2, 2, 2, 2}, ys: []float64{1, 2, 3, 4}},
		{name: "length mismatch", xs: []float64{1, 2, 3}, ys: []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitOLS(tt.xs, tt.ys)
			var sde *domain.SingularDesignError
			if !errors.As(err, &sde) {
				t.Errorf("expected SingularDesignError, got %v", err)
			}
		})
	}
}

func TestFitGroupOLS_TagsGroup(t *testing.T) {
	obs := []domain.Observation{{Group: "TBA", Period: 1998, X: 0.5, Y: 0.39}}
	_, err := FitGroupOLS("TBA", obs)
	var sde *domain.SingularDesignError
	if !errors.As(err, &sde) {
		t.Fatalf("expected SingularDesignError, got %v", err)
	}
	if sde.Group != "TBA" || sde.N != 1 {
		t.Errorf("error lost group context: %+v", sde)
	}
}

func assertNear(t *testing.T, name string, expected, actual, tol float64) {
	t.Helper()
	if math.Abs(expected-actual) > tol {
		t.Errorf("%s: expected %.12f, got %.12f", name, expected, actual)
	}
}
