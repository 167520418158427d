package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

// printComparison renders a comparison the way `fit` and `runs show` display it:
// population-level summary first, then one block of rows per team ordered by
// hierarchical slope, steepest first.
func printComparison(w io.Writer, cmp *domain.Comparison) {
	fmt.Fprintf(w, "Pooled slope: %s\n", formatEstimate(cmp.Pooled))
	fmt.Fprintf(w, "Variance components: intercept %.6f  slope %.6f  corr %+.3f  residual %.6f\n",
		cmp.Components.InterceptVar(), cmp.Components.SlopeVar(), cmp.Components.Correlation(), cmp.Components.Resid)
	fmt.Fprintf(w, "Optimizer iterations: %d\n\n", cmp.REMLIterations)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEAM\tESTIMATOR\tINTERCEPT\tSLOPE [LO, HI]")
	fmt.Fprintln(tw, "----\t---------\t---------\t--------------")
	for _, row := range orderRows(cmp) {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\n", row.Group, row.Estimator, row.Estimate.Intercept, formatEstimate(row.Estimate))
	}
	tw.Flush()

	contrasted := len(cmp.Contrasts)
	if contrasted > 0 {
		fmt.Fprintf(w, "\nHierarchical interval wider for %d of %d team(s), crossed the pooled slope for %d\n",
			cmp.IntervalsWidened, contrasted, cmp.CrossedPooled)
	}

	for _, d := range cmp.Skipped {
		fmt.Fprintf(w, "skipped %s: %s\n", d.Group, d.Reason)
	}
}

// orderRows sorts teams by hierarchical slope descending, keeping each
// team's estimator rows together. Teams without a hierarchical row sort
// last, alphabetically.
func orderRows(cmp *domain.Comparison) []domain.ComparisonRow {
	hier := make(map[string]float64)
	for _, r := range cmp.RowsFor(domain.EstimatorHierarchical) {
		hier[r.Group] = r.Estimate.Slope
	}

	var groups []string
	seen := make(map[string]bool)
	for _, r := range cmp.Rows {
		if !seen[r.Group] {
			seen[r.Group] = true
			groups = append(groups, r.Group)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		si, oki := hier[groups[i]]
		sj, okj := hier[groups[j]]
		if oki != okj {
			return oki
		}
		if !oki {
			return groups[i] < groups[j]
		}
		return si > sj
	})

	byGroup := make(map[string][]domain.ComparisonRow)
	for _, r := range cmp.Rows {
		byGroup[r.Group] = append(byGroup[r.Group], r)
	}

	ordered := make([]domain.ComparisonRow, 0, len(cmp.Rows))
	for _, g := range groups {
		ordered = append(ordered, byGroup[g]...)
	}
	return ordered
}

// formatEstimate renders a slope with its interval, or flags an exact fit
// where the interval carries no information.
func formatEstimate(e domain.CoefficientEstimate) string {
	if e.Degenerate {
		return fmt.Sprintf("%.4f (exact fit)", e.Slope)
	}
	return fmt.Sprintf("%.4f [%.4f, %.4f]", e.Slope, e.SlopeLower(), e.SlopeUpper())
}

// buildSavedRun freezes a comparison into its persisted form.
func buildSavedRun(cmp *domain.Comparison, exponent float64, minSeasons int) *domain.SavedRun {
	return &domain.SavedRun{
		Summary: domain.RunSummary{
			ID:               uuid.NewString(),
			Exponent:         exponent,
			MinSeasons:       minSeasons,
			GroupsTotal:      cmp.GroupsTotal,
			GroupsSkipped:    len(cmp.Skipped),
			IntervalsWidened: cmp.IntervalsWidened,
			CrossedPooled:    cmp.CrossedPooled,
			PooledSlope:      cmp.Pooled.Slope,
			CreatedAt:        time.Now().UTC(),
		},
		Pooled:     cmp.Pooled,
		Components: cmp.Components,
		Rows:       cmp.Rows,
	}
}

func formatDateTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
