package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pennant",
	Short: "Multilevel regression comparisons for team season data",
	Long: `pennant fits the relationship between pythagorean expectation and
winning percentage three ways: one pooled regression over all seasons,
one independent regression per team, and one hierarchical model that
partially pools the teams.

Import season data, fit and compare the estimators, and save runs for
later inspection and export.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
