package regression

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

// Method selects the objective used to estimate the variance components.
// REML profiles out the fixed effects and corrects for the degrees of
// freedom they consume; ML does not. ML is kept for comparison only.
type Method int

const (
	REML Method = iota
	ML
)

// MixedOptions configures the variance-component search.
type MixedOptions struct {
	Method    Method
	Tolerance float64 // convergence threshold on the objective, default 1e-9
	MaxIter   int     // optimizer iteration cap, default 500
}

const (
	defaultTolerance = 1e-9
	defaultMaxIter   = 500

	// residualFloor keeps the profiled objective bounded when the data are
	// fit exactly (zero residual variance), so a boundary collapse converges
	// instead of chasing an unbounded likelihood.
	residualFloor = 1e-12

	// collapseThreshold classifies a profiled residual variance as an exact
	// fit. The search approaches the floor asymptotically, so detection has
	// to trigger above it.
	collapseThreshold = 1e-10

	fixedParams = 2 // intercept and slope
)

// MixedFit is the completed result of one mixed-effects estimation:
// population-level fixed effects, the variance components, and per-group
// partially pooled coefficient estimates (BLUPs added to the fixed effects).
type MixedFit struct {
	Fixed       domain.CoefficientEstimate
	InterceptSE float64
	Components  domain.VarianceComponents
	Groups      map[string]domain.CoefficientEstimate

	Iterations int
	Objective  float64 // minimized -2 profile log-likelihood
}

// FitMixed estimates y_ij = (b0 + u0j) + (b1 + u1j) x_ij + e_ij with
// (u0j, u1j) ~ N(0, Sigma) across groups and e_ij ~ N(0, sigma2).
//
// Sigma is reparametrized through the Cholesky factor of Sigma/sigma2, so
// the search space is unconstrained and positive semi-definiteness is
// structural; sigma2 is profiled out of the objective. The profile deviance
// is minimized with Nelder-Mead. A collapse of Sigma to (near) zero is a
// valid boundary estimate, not a failure.
func FitMixed(ds *domain.Dataset, opts MixedOptions) (*MixedFit, error) {
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaultTolerance
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = defaultMaxIter
	}

	designs := buildDesigns(ds)
	if len(designs) < 2 {
		return nil, &domain.DegenerateGroupingError{Groups: len(designs)}
	}

	// The pooled fit surfaces a rank-deficient design before the iterative
	// search starts, and anchors the starting values.
	xs, ys := ds.XY()
	pooled, err := FitOLS(xs, ys)
	if err != nil {
		return nil, err
	}

	theta0 := initialTheta(designs, pooled)

	objective := func(theta []float64) float64 {
		prof, err := evalProfile(designs, relCov(theta))
		if err != nil {
			return math.Inf(1)
		}
		sol, err := prof.gls()
		if err != nil {
			return math.Inf(1)
		}
		dev := deviance(prof, sol, opts.Method)
		if math.IsNaN(dev) {
			return math.Inf(1)
		}
		return dev
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: opts.MaxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Iterations: 30,
		},
	}

	result, err := optimize.Minimize(problem, theta0, settings, &optimize.NelderMead{})
	if result != nil && result.Status == optimize.IterationLimit {
		return nil, &domain.ConvergenceError{
			Iterations:    result.Stats.MajorIterations,
			LastObjective: result.F,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("variance component search failed: %w", err)
	}

	return assembleFit(designs, result, opts.Method)
}

// assembleFit re-evaluates the profile at the optimum and derives fixed
// effects, variance components, and per-group BLUP coefficients with their
// conditional standard errors.
func assembleFit(designs []groupDesign, result *optimize.Result, method Method) (*MixedFit, error) {
	g := relCov(result.X)
	prof, err := evalProfile(designs, g)
	if err != nil {
		return nil, fmt.Errorf("evaluating profile at optimum: %w", err)
	}
	sol, err := prof.gls()
	if err != nil {
		return nil, fmt.Errorf("generalized least squares at optimum: %w", err)
	}

	df := prof.n - fixedParams
	if method == ML {
		df = prof.n
	}
	sigma2 := sol.r2 / float64(df)
	degenerate := false
	if sigma2 < collapseThreshold {
		sigma2 = residualFloor
		degenerate = true

		// With zero residual variance the group lines are observed exactly
		// and the search's relative covariance is unidentified along any
		// collapsed direction, leaving stale entries behind. Replace it with
		// the sample covariance of the per-group coefficients, in units
		// relative to the floored residual variance.
		if eg, ok := exactRelCov(designs, sigma2); ok {
			eprof, eerr := evalProfile(designs, eg)
			if eerr == nil {
				if esol, serr := eprof.gls(); serr == nil {
					g, prof, sol = eg, eprof, esol
				}
			}
		}
	}

	beta0 := sol.beta.AtVec(0)
	beta1 := sol.beta.AtVec(1)

	fit := &MixedFit{
		Fixed: domain.CoefficientEstimate{
			Intercept: beta0,
			Slope:     beta1,
			SlopeSE:   math.Sqrt(sigma2 * sol.ainv.At(1, 1)),
		},
		InterceptSE: math.Sqrt(sigma2 * sol.ainv.At(0, 0)),
		Components: domain.VarianceComponents{
			Sigma: [2][2]float64{
				{sigma2 * g.At(0, 0), sigma2 * g.At(0, 1)},
				{sigma2 * g.At(1, 0), sigma2 * g.At(1, 1)},
			},
			Resid: sigma2,
		},
		Groups:     make(map[string]domain.CoefficientEstimate, len(designs)),
		Iterations: result.Stats.MajorIterations,
		Objective:  result.F,
	}
	if degenerate {
		fit.Components.Resid = 0
		fit.Fixed.Degenerate = true
	}

	eye := mat.NewDense(2, 2, []float64{1, 0, 0, 1})

	for _, gp := range prof.groups {
		// BLUP: u_j = G X' V⁻¹ (y - X beta) = G (u_j - A_j beta), all in
		// covariance units relative to sigma2 (the scale cancels).
		var t mat.VecDense
		t.MulVec(gp.aj, sol.beta)
		t.SubVec(gp.uj, &t)
		var b mat.VecDense
		b.MulVec(g, &t)

		// Conditional covariance of the group-level coefficients
		// beta + u_j: (I - H) Var(beta) (I - H)' + Sigma - H Sigma with
		// H = G A_j. Exact for GLS fixed effects with the variance
		// components held at their estimates; the cross term between the
		// fixed-effect error and the group's prediction error vanishes.
		var h mat.Dense
		h.Mul(g, gp.aj)

		var imh mat.Dense
		imh.Sub(eye, &h)

		var iva mat.Dense
		iva.Mul(&imh, sol.ainv)
		var c mat.Dense
		c.Mul(&iva, imh.T())

		var hg mat.Dense
		hg.Mul(&h, g)
		var shrink mat.Dense
		shrink.Sub(g, &hg)
		c.Add(&c, &shrink)

		slopeVar := sigma2 * c.At(1, 1)
		if slopeVar < 0 {
			slopeVar = 0
		}

		fit.Groups[gp.id] = domain.CoefficientEstimate{
			Intercept:  beta0 + b.AtVec(0),
			Slope:      beta1 + b.AtVec(1),
			SlopeSE:    math.Sqrt(slopeVar),
			Degenerate: degenerate,
		}
	}

	return fit, nil
}

// groupDesign is one group's design matrix [1, x] and response vector.
type groupDesign struct {
	id string
	x  *mat.Dense
	y  *mat.VecDense
	n  int
}

func buildDesigns(ds *domain.Dataset) []groupDesign {
	byGroup := ds.ByGroup()
	ids := make([]string, 0, len(byGroup))
	for id := range byGroup {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	designs := make([]groupDesign, 0, len(ids))
	for _, id := range ids {
		obs := byGroup[id]
		n := len(obs)
		x := mat.NewDense(n, 2, nil)
		y := mat.NewVecDense(n, nil)
		for i, o := range obs {
			x.Set(i, 0, 1)
			x.Set(i, 1, o.X)
			y.SetVec(i, o.Y)
		}
		designs = append(designs, groupDesign{id: id, x: x, y: y, n: n})
	}
	return designs
}

// relCov maps the three free parameters to the relative covariance
// G = L L' with L lower triangular, guaranteeing G is positive
// semi-definite for any theta.
func relCov(theta []float64) *mat.Dense {
	l := mat.NewDense(2, 2, []float64{theta[0], 0, theta[1], theta[2]})
	var g mat.Dense
	g.Mul(l, l.T())
	return &g
}

// groupProfile holds one group's solved pieces of the marginal covariance:
// W = V⁻¹X, u_j = X'V⁻¹y, A_j = X'V⁻¹X, all relative to sigma2.
type groupProfile struct {
	id string
	x  *mat.Dense
	uj *mat.VecDense
	aj *mat.SymDense
}

// profile is the block-diagonal marginal likelihood evaluated at one value
// of the relative covariance.
type profile struct {
	a       *mat.SymDense // sum_j X'V⁻¹X
	u       *mat.VecDense // sum_j X'V⁻¹y
	yvy     float64       // sum_j y'V⁻¹y
	logDetV float64
	groups  []groupProfile
	n       int
}

// evalProfile factors each group's V_j = X G X' + I and accumulates the
// sufficient pieces for GLS and the profiled deviance.
func evalProfile(designs []groupDesign, g *mat.Dense) (*profile, error) {
	p := &profile{
		a: mat.NewSymDense(2, nil),
		u: mat.NewVecDense(2, nil),
	}

	for _, d := range designs {
		var xg mat.Dense
		xg.Mul(d.x, g)
		var v mat.Dense
		v.Mul(&xg, d.x.T())

		sym := mat.NewSymDense(d.n, nil)
		for i := 0; i < d.n; i++ {
			for j := i; j < d.n; j++ {
				val := (v.At(i, j) + v.At(j, i)) / 2
				if i == j {
					val++
				}
				sym.SetSym(i, j, val)
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(sym); !ok {
			return nil, fmt.Errorf("marginal covariance for group %q is not positive definite", d.id)
		}
		p.logDetV += chol.LogDet()

		var winvX mat.Dense
		if err := chol.SolveTo(&winvX, d.x); err != nil {
			return nil, fmt.Errorf("solving marginal covariance for group %q: %w", d.id, err)
		}
		var winvY mat.VecDense
		if err := chol.SolveVecTo(&winvY, d.y); err != nil {
			return nil, fmt.Errorf("solving marginal covariance for group %q: %w", d.id, err)
		}

		var ajDense mat.Dense
		ajDense.Mul(d.x.T(), &winvX)
		aj := mat.NewSymDense(2, nil)
		for i := 0; i < 2; i++ {
			for j := i; j < 2; j++ {
				aj.SetSym(i, j, (ajDense.At(i, j)+ajDense.At(j, i))/2)
			}
		}

		var uj mat.VecDense
		uj.MulVec(d.x.T(), &winvY)

		for i := 0; i < 2; i++ {
			for j := i; j < 2; j++ {
				p.a.SetSym(i, j, p.a.At(i, j)+aj.At(i, j))
			}
		}
		p.u.AddVec(p.u, &uj)
		p.yvy += mat.Dot(d.y, &winvY)
		p.n += d.n

		p.groups = append(p.groups, groupProfile{id: d.id, x: d.x, uj: &uj, aj: aj})
	}

	return p, nil
}

// glsSolution carries the fixed-effect solve at one covariance value.
type glsSolution struct {
	beta    *mat.VecDense
	ainv    *mat.SymDense
	logDetA float64
	r2      float64 // weighted residual sum of squares y'V⁻¹y - u'beta
}

func (p *profile) gls() (*glsSolution, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(p.a); !ok {
		return nil, &domain.SingularDesignError{N: p.n}
	}

	beta := mat.NewVecDense(2, nil)
	if err := chol.SolveVecTo(beta, p.u); err != nil {
		return nil, &domain.SingularDesignError{N: p.n}
	}

	ainv := mat.NewSymDense(2, nil)
	if err := chol.InverseTo(ainv); err != nil {
		return nil, &domain.SingularDesignError{N: p.n}
	}

	r2 := p.yvy - mat.Dot(p.u, beta)
	if r2 < 0 {
		r2 = 0
	}

	return &glsSolution{beta: beta, ainv: ainv, logDetA: chol.LogDet(), r2: r2}, nil
}

// deviance is -2 times the profiled (restricted) log-likelihood, up to a
// constant that does not depend on the covariance parameters.
func deviance(p *profile, sol *glsSolution, method Method) float64 {
	df := p.n - fixedParams
	if method == ML {
		df = p.n
	}

	sigma2 := sol.r2 / float64(df)
	if sigma2 < residualFloor {
		sigma2 = residualFloor
	}

	dev := p.logDetV + float64(df)*(1+math.Log(2*math.Pi*sigma2))
	if method == REML {
		dev += sol.logDetA
	}
	return dev
}

// initialTheta seeds the search from the spread of the per-group OLS
// coefficients relative to the pooled residual variance. Groups whose
// designs are singular are skipped; a flat default is used when too few
// groups can be fit.
func initialTheta(designs []groupDesign, pooled *OLSFit) []float64 {
	s2 := pooled.ResidualVariance
	if s2 <= 0 {
		s2 = 1e-4
	}

	intercepts, slopes := groupCoefficients(designs)
	if len(intercepts) < 2 {
		return []float64{0.5, 0, 0.5}
	}

	t0 := math.Sqrt(sampleVariance(intercepts) / s2)
	t2 := math.Sqrt(sampleVariance(slopes) / s2)
	return []float64{math.Max(t0, 0.05), 0, math.Max(t2, 0.05)}
}

// groupCoefficients fits each group by OLS, skipping singular designs.
func groupCoefficients(designs []groupDesign) (intercepts, slopes []float64) {
	for _, d := range designs {
		xs := make([]float64, d.n)
		ys := make([]float64, d.n)
		for i := 0; i < d.n; i++ {
			xs[i] = d.x.At(i, 1)
			ys[i] = d.y.AtVec(i)
		}
		fit, err := FitOLS(xs, ys)
		if err != nil {
			continue
		}
		intercepts = append(intercepts, fit.Intercept)
		slopes = append(slopes, fit.Slope)
	}
	return intercepts, slopes
}

// exactRelCov estimates the relative covariance directly from the spread of
// the per-group OLS coefficients. Only meaningful after a residual collapse,
// when those coefficients are exact rather than noisy.
func exactRelCov(designs []groupDesign, sigma2 float64) (*mat.Dense, bool) {
	intercepts, slopes := groupCoefficients(designs)
	if len(intercepts) < 2 {
		return nil, false
	}
	v00 := sampleVariance(intercepts)
	v11 := sampleVariance(slopes)
	v01 := sampleCovariance(intercepts, slopes)
	return mat.NewDense(2, 2, []float64{
		v00 / sigma2, v01 / sigma2,
		v01 / sigma2, v11 / sigma2,
	}), true
}

func sampleVariance(vals []float64) float64 {
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(vals)-1)
}

func sampleCovariance(as, bs []float64) float64 {
	var ma, mb float64
	for i := range as {
		ma += as[i]
		mb += bs[i]
	}
	ma /= float64(len(as))
	mb /= float64(len(bs))

	var ss float64
	for i := range as {
		ss += (as[i] - ma) * (bs[i] - mb)
	}
	return ss / float64(len(as)-1)
}
