package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List imported teams",
	Long:  `List imported teams with their season coverage.`,
	Args:  cobra.NoArgs,
	RunE:  runTeams,
}

func init() {
	rootCmd.AddCommand(teamsCmd)
}

func runTeams(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(ctx) }()

	teams, err := app.SeasonRepo.ListTeams(ctx)
	if err != nil {
		return fmt.Errorf("failed to list teams: %w", err)
	}

	if len(teams) == 0 {
		fmt.Println("No teams found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEAM\tSEASONS\tFIRST\tLAST")
	fmt.Fprintln(w, "----\t-------\t-----\t----")
	for _, t := range teams {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", t.Team, t.Seasons, t.FirstSeason, t.LastSeason)
	}
	w.Flush()

	fmt.Printf("\n%d team(s)\n", len(teams))
	return nil
}
