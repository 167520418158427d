package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved comparison runs",
	Long:  `List saved comparison runs and show their full tables.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	Long: `List saved comparison runs, newest first.

Examples:
  pennant runs list            # Last 10 runs
  pennant runs list --last 50  # Last 50 runs`,
	Args: cobra.NoArgs,
	RunE: runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsLast int

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsListCmd.Flags().IntVarP(&runsLast, "last", "n", 10, "Number of runs to show")
}

func runRunsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(ctx) }()

	runs, err := app.RunRepo.List(ctx, runsLast)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tEXPONENT\tTEAMS\tSKIPPED\tWIDENED\tCROSSED\tPOOLED SLOPE")
	fmt.Fprintln(w, "--\t----\t--------\t-----\t-------\t-------\t-------\t------------")
	for _, r := range runs {
		id := r.ID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%d\t%d\t%d\t%.4f\n",
			id, formatDateTime(r.CreatedAt), r.Exponent,
			r.GroupsTotal, r.GroupsSkipped, r.IntervalsWidened, r.CrossedPooled, r.PooledSlope)
	}
	w.Flush()

	fmt.Printf("\nShowing %d run(s)\n", len(runs))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(ctx) }()

	run, err := app.RunRepo.Get(ctx, args[0])
	if err != nil {
		return err
	}

	s := run.Summary
	fmt.Printf("Run %s (%s)\n", s.ID, formatDateTime(s.CreatedAt))
	fmt.Printf("Exponent %.2f, min seasons %d, %d team(s), %d skipped\n\n",
		s.Exponent, s.MinSeasons, s.GroupsTotal, s.GroupsSkipped)

	fmt.Printf("Pooled slope: %s\n", formatEstimate(run.Pooled))
	fmt.Printf("Variance components: intercept %.6f  slope %.6f  corr %+.3f  residual %.6f\n\n",
		run.Components.InterceptVar(), run.Components.SlopeVar(), run.Components.Correlation(), run.Components.Resid)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEAM\tESTIMATOR\tINTERCEPT\tSLOPE [LO, HI]")
	fmt.Fprintln(w, "----\t---------\t---------\t--------------")
	for _, row := range run.Rows {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\n", row.Group, row.Estimator, row.Estimate.Intercept, formatEstimate(row.Estimate))
	}
	w.Flush()

	fmt.Printf("\nHierarchical interval wider for %d team(s), crossed the pooled slope for %d\n",
		s.IntervalsWidened, s.CrossedPooled)
	return nil
}
