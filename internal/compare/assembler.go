// Package compare runs the three estimators over one dataset and normalizes
// their outputs into a single comparison table.
package compare

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/emiliopalmerini/pennant/internal/domain"
	"github.com/emiliopalmerini/pennant/internal/regression"
)

// Options configures one assembler run.
type Options struct {
	// MinGroupSize excludes groups with fewer observations from per-group
	// fitting. They stay in the hierarchical fit. Default 2.
	MinGroupSize int

	Mixed regression.MixedOptions
}

const defaultMinGroupSize = 2

// Assemble runs the pooled fit once, the unpooled fit per group, and the
// hierarchical fit once, then derives the per-group contrasts.
//
// A singular design in one group's unpooled fit is recorded as a diagnostic
// and excluded from the table; it never aborts the run. A pooled or
// hierarchical failure is fatal since neither has a meaningful partial
// result. The dataset is never mutated.
func Assemble(ctx context.Context, ds *domain.Dataset, opts Options) (*domain.Comparison, error) {
	if opts.MinGroupSize <= 0 {
		opts.MinGroupSize = defaultMinGroupSize
	}

	xs, ys := ds.XY()
	pooled, err := regression.FitOLS(xs, ys)
	if err != nil {
		return nil, fmt.Errorf("pooled fit: %w", err)
	}

	byGroup := ds.ByGroup()
	groups := ds.Groups()

	unpooled, skipped, err := fitGroups(ctx, groups, byGroup, opts.MinGroupSize)
	if err != nil {
		return nil, err
	}

	mixed, err := regression.FitMixed(ds, opts.Mixed)
	if err != nil {
		return nil, fmt.Errorf("hierarchical fit: %w", err)
	}

	cmp := &domain.Comparison{
		Pooled:         pooled.CoefficientEstimate,
		Components:     mixed.Components,
		Skipped:        skipped,
		GroupsTotal:    len(groups),
		REMLIterations: mixed.Iterations,
	}

	for _, g := range groups {
		cmp.Rows = append(cmp.Rows, domain.ComparisonRow{
			Group:     g,
			Estimator: domain.EstimatorPooled,
			Estimate:  pooled.CoefficientEstimate,
		})

		up, hasUnpooled := unpooled[g]
		if hasUnpooled {
			cmp.Rows = append(cmp.Rows, domain.ComparisonRow{
				Group:     g,
				Estimator: domain.EstimatorUnpooled,
				Estimate:  up.CoefficientEstimate,
			})
		}

		hier, hasHier := mixed.Groups[g]
		if hasHier {
			cmp.Rows = append(cmp.Rows, domain.ComparisonRow{
				Group:     g,
				Estimator: domain.EstimatorHierarchical,
				Estimate:  hier,
			})
		}

		if !hasUnpooled || !hasHier {
			continue
		}

		contrast := domain.GroupContrast{
			Group:               g,
			UnpooledCIWidth:     up.SlopeCIWidth(),
			HierarchicalCIWidth: hier.SlopeCIWidth(),
			IntervalWidened:     hier.SlopeCIWidth() > up.SlopeCIWidth(),
			CrossedPooled:       crossedPooled(pooled.Slope, up.Slope, hier.Slope),
		}
		cmp.Contrasts = append(cmp.Contrasts, contrast)
		if contrast.IntervalWidened {
			cmp.IntervalsWidened++
		}
		if contrast.CrossedPooled {
			cmp.CrossedPooled++
		}
	}

	return cmp, nil
}

// fitGroups runs the mutually independent per-group fits in parallel,
// collecting results keyed by group so completion order is irrelevant.
func fitGroups(ctx context.Context, groups []string, byGroup map[string][]domain.Observation, minSize int) (map[string]*regression.OLSFit, []domain.GroupDiagnostic, error) {
	type slot struct {
		fit *regression.OLSFit
		err error
	}
	slots := make([]slot, len(groups))

	eg, ctx := errgroup.WithContext(ctx)
	for i, g := range groups {
		i, g := i, g
		obs := byGroup[g]
		if len(obs) < minSize {
			slots[i].err = fmt.Errorf("only %d observation(s), minimum %d", len(obs), minSize)
			continue
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slots[i].fit, slots[i].err = regression.FitGroupOLS(g, obs)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	fits := make(map[string]*regression.OLSFit, len(groups))
	var skipped []domain.GroupDiagnostic
	for i, g := range groups {
		if slots[i].err != nil {
			skipped = append(skipped, domain.GroupDiagnostic{Group: g, Reason: slots[i].err.Error()})
			continue
		}
		fits[g] = slots[i].fit
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Group < skipped[j].Group })

	return fits, skipped, nil
}

// crossedPooled reports whether partial pooling moved a group's slope to the
// opposite side of the pooled slope.
func crossedPooled(pooled, unpooled, hier float64) bool {
	du := unpooled - pooled
	dh := hier - pooled
	if du == 0 || dh == 0 {
		return false
	}
	return math.Signbit(du) != math.Signbit(dh)
}
