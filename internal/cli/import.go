package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import team season records from a CSV file",
	Long: `Import team season records from a CSV file.

The file must have a header row with the columns
team, season, runs_scored, runs_allowed, wins, losses (any order).
Existing (team, season) records are overwritten.

Examples:
  pennant import seasons.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	records, err := parseSeasonsCSV(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(ctx) }()

	written, err := app.SeasonRepo.UpsertBatch(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to store seasons: %w", err)
	}

	fmt.Printf("Imported %d season record(s)\n", written)
	return nil
}

var seasonColumns = []string{"team", "season", "runs_scored", "runs_allowed", "wins", "losses"}

// parseSeasonsCSV reads team season records from CSV. Every record must be
// valid; one bad line fails the whole import so a partial dataset never
// reaches storage.
func parseSeasonsCSV(r io.Reader) ([]domain.TeamSeason, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range seasonColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var records []domain.TeamSeason
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		line++

		rec := domain.TeamSeason{Team: strings.TrimSpace(row[idx["team"]])}
		if rec.Season, err = intField(row, idx, "season"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.RunsScored, err = int64Field(row, idx, "runs_scored"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.RunsAllowed, err = int64Field(row, idx, "runs_allowed"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Wins, err = int64Field(row, idx, "wins"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Losses, err = int64Field(row, idx, "losses"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no records found")
	}
	return records, nil
}

func intField(row []string, idx map[string]int, col string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(row[idx[col]]))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", col, row[idx[col]])
	}
	return v, nil
}

func int64Field(row []string, idx map[string]int, col string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(row[idx[col]]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", col, row[idx[col]])
	}
	return v, nil
}
