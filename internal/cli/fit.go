package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/pennant/internal/compare"
	"github.com/emiliopalmerini/pennant/internal/dataset"
	"github.com/emiliopalmerini/pennant/internal/domain"
	"github.com/emiliopalmerini/pennant/internal/infrastructure/config"
	"github.com/emiliopalmerini/pennant/internal/ports"
	"github.com/emiliopalmerini/pennant/internal/regression"
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit and compare the three estimators",
	Long: `Fit the pooled, per-team, and hierarchical regressions over the
stored season data and print the comparison table.

Examples:
  pennant fit                          # Fit over stored seasons
  pennant fit --csv seasons.csv        # Fit directly from a file
  pennant fit --exponent 2.0           # Override the pythagorean exponent
  pennant fit --save                   # Persist the run for later export`,
	Args: cobra.NoArgs,
	RunE: runFit,
}

// Flags
var (
	fitCSV        string
	fitExponent   float64
	fitMinSeasons int
	fitSave       bool
	fitML         bool
)

func init() {
	rootCmd.AddCommand(fitCmd)

	fitCmd.Flags().StringVar(&fitCSV, "csv", "", "Fit from a CSV file instead of the database")
	fitCmd.Flags().Float64VarP(&fitExponent, "exponent", "p", domain.DefaultExponent, "Pythagorean exponent")
	fitCmd.Flags().IntVar(&fitMinSeasons, "min-seasons", 2, "Minimum seasons for a per-team fit")
	fitCmd.Flags().BoolVar(&fitSave, "save", false, "Persist the run")
	fitCmd.Flags().BoolVar(&fitML, "ml", false, "Use maximum likelihood instead of REML")
}

func runFit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	fitCfg, err := config.LoadFit()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cmd.Flags().Changed("exponent") {
		fitExponent = fitCfg.Exponent
	}
	if !cmd.Flags().Changed("min-seasons") {
		fitMinSeasons = fitCfg.MinSeasons
	}

	var app *AppContext
	var records []domain.TeamSeason

	if fitCSV != "" {
		f, err := os.Open(fitCSV)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", fitCSV, err)
		}
		records, err = parseSeasonsCSV(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", fitCSV, err)
		}
	} else {
		app, err = NewAppContext(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close(ctx) }()

		records, err = app.SeasonRepo.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load seasons: %w", err)
		}
	}

	if len(records) == 0 {
		return fmt.Errorf("no season data; run 'pennant import' first")
	}

	ds, err := dataset.Build(records, dataset.Config{Exponent: fitExponent})
	if err != nil {
		return fmt.Errorf("failed to build dataset: %w", err)
	}

	method := regression.REML
	if fitML {
		method = regression.ML
	}

	cmp, err := compare.Assemble(ctx, ds, compare.Options{
		MinGroupSize: fitMinSeasons,
		Mixed: regression.MixedOptions{
			Method:    method,
			Tolerance: fitCfg.REMLTolerance,
			MaxIter:   fitCfg.REMLMaxIter,
		},
	})
	if err != nil {
		return err
	}

	printComparison(os.Stdout, cmp)

	if fitSave {
		if app == nil {
			app, err = NewAppContext(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(ctx) }()
		}

		run := buildSavedRun(cmp, fitExponent, fitMinSeasons)
		if err := app.RunRepo.Save(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		fmt.Printf("\nSaved run %s\n", run.Summary.ID)
	}

	if app != nil {
		_ = app.Metrics.ExportFitMetrics(ctx, &ports.FitMetrics{
			Exponent:        fitExponent,
			Groups:          cmp.GroupsTotal,
			GroupsSkipped:   len(cmp.Skipped),
			REMLIterations:  cmp.REMLIterations,
			DurationSeconds: time.Since(start).Seconds(),
			Saved:           fitSave,
		})
	}

	return nil
}
