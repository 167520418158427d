package domain

// CoefficientEstimate holds one fitted line with the uncertainty of its slope.
//
// The interval is a normal approximation (point estimate ± 2 standard errors),
// not a t interval. That understates the width for small samples; it is kept
// deliberately so pooled, unpooled, and hierarchical intervals are constructed
// identically and stay comparable.
type CoefficientEstimate struct {
	Intercept float64
	Slope     float64
	SlopeSE   float64

	// Degenerate marks an exact fit: zero residual variance, so the
	// standard error is reported as 0 rather than dividing by zero.
	Degenerate bool
}

// SlopeLower returns the lower bound of the ~95% interval for the slope.
func (c CoefficientEstimate) SlopeLower() float64 {
	return c.Slope - 2*c.SlopeSE
}

// SlopeUpper returns the upper bound of the ~95% interval for the slope.
func (c CoefficientEstimate) SlopeUpper() float64 {
	return c.Slope + 2*c.SlopeSE
}

// SlopeCIWidth returns the interval width, exactly 4 standard errors.
func (c CoefficientEstimate) SlopeCIWidth() float64 {
	return c.SlopeUpper() - c.SlopeLower()
}

// Predict evaluates the fitted line at x.
func (c CoefficientEstimate) Predict(x float64) float64 {
	return c.Intercept + c.Slope*x
}
