package domain

import "math"

// VarianceComponents holds the estimated covariance structure of a completed
// mixed-effects fit: Sigma is the 2x2 covariance of the random intercept and
// random slope across groups, Resid the residual variance. Immutable once
// estimated; a boundary collapse to Sigma = 0 is a valid estimate.
type VarianceComponents struct {
	Sigma [2][2]float64
	Resid float64
}

// InterceptVar returns the between-group variance of intercepts.
func (v VarianceComponents) InterceptVar() float64 {
	return v.Sigma[0][0]
}

// SlopeVar returns the between-group variance of slopes.
func (v VarianceComponents) SlopeVar() float64 {
	return v.Sigma[1][1]
}

// Correlation returns the intercept/slope correlation, or 0 when either
// variance is zero.
func (v VarianceComponents) Correlation() float64 {
	denom := math.Sqrt(v.Sigma[0][0] * v.Sigma[1][1])
	if denom == 0 {
		return 0
	}
	return v.Sigma[0][1] / denom
}
