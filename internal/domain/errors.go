package domain

import "fmt"

// SingularDesignError signals that a least-squares fit has no solution:
// fewer than two observations, or a predictor with zero variance.
// Group is empty for the pooled fit.
type SingularDesignError struct {
	Group string
	N     int
}

func (e *SingularDesignError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("singular design: %d observation(s) or zero predictor variance", e.N)
	}
	return fmt.Sprintf("singular design for group %q: %d observation(s) or zero predictor variance", e.Group, e.N)
}

// DegenerateGroupingError signals that the hierarchical fit was asked to
// estimate between-group variance from fewer than two groups.
type DegenerateGroupingError struct {
	Groups int
}

func (e *DegenerateGroupingError) Error() string {
	return fmt.Sprintf("hierarchical fit needs at least 2 groups, got %d", e.Groups)
}

// ConvergenceError signals that the REML optimizer exhausted its iteration
// budget before meeting the convergence tolerance. A boundary collapse of the
// variance components to zero is not a convergence failure.
type ConvergenceError struct {
	Iterations    int
	LastObjective float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("REML optimizer did not converge after %d iterations (last objective %.6f)",
		e.Iterations, e.LastObjective)
}
