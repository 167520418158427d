// Package regression implements the three estimators the comparison engine
// contrasts: closed-form ordinary least squares, used for both the pooled and
// the per-group fits, and a random-intercept/random-slope mixed model
// estimated by restricted maximum likelihood.
package regression

import (
	"math"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

// minPredictorVariance is the threshold below which the centered sum of
// squares of x is treated as zero and the design as singular.
const minPredictorVariance = 1e-12

// OLSFit is the result of a simple linear regression y = b0 + b1*x.
type OLSFit struct {
	domain.CoefficientEstimate

	ResidualVariance float64
	N                int
}

// FitOLS solves the normal equations for a single line. It is a pure
// function of its input sample.
//
// The slope standard error is sqrt(residual variance / Sxx), with residual
// variance SSR/(n-2). An exact fit (SSR = 0, including the n = 2 case) is
// reported with a zero standard error and the Degenerate flag set rather
// than dividing by zero.
func FitOLS(xs, ys []float64) (*OLSFit, error) {
	n := len(xs)
	if n != len(ys) {
		return nil, &domain.SingularDesignError{N: n}
	}
	if n < 2 {
		return nil, &domain.SingularDesignError{N: n}
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}
	if sxx < minPredictorVariance {
		return nil, &domain.SingularDesignError{N: n}
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var ssr float64
	for i := 0; i < n; i++ {
		r := ys[i] - intercept - slope*xs[i]
		ssr += r * r
	}

	fit := &OLSFit{
		CoefficientEstimate: domain.CoefficientEstimate{
			Intercept: intercept,
			Slope:     slope,
		},
		N: n,
	}

	df := n - 2
	if df == 0 || ssr <= minPredictorVariance*sxx {
		fit.Degenerate = true
		return fit, nil
	}

	fit.ResidualVariance = ssr / float64(df)
	fit.SlopeSE = math.Sqrt(fit.ResidualVariance / sxx)
	return fit, nil
}

// FitGroupOLS fits one group's observations, tagging any singular-design
// failure with the group identifier.
func FitGroupOLS(group string, obs []domain.Observation) (*OLSFit, error) {
	xs := make([]float64, len(obs))
	ys := make([]float64, len(obs))
	for i, o := range obs {
		xs[i] = o.X
		ys[i] = o.Y
	}
	fit, err := FitOLS(xs, ys)
	if err != nil {
		if sde, ok := err.(*domain.SingularDesignError); ok {
			return nil, &domain.SingularDesignError{Group: group, N: sde.N}
		}
		return nil, err
	}
	return fit, nil
}
