package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a saved run to JSON or CSV",
	Long: `Export a saved comparison run for external analysis.

Examples:
  pennant export --run <id> --format json --output run.json
  pennant export --run <id> --format csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// Flags
var (
	exportRunID  string
	exportFormat string
	exportOutput string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportRunID, "run", "", "Run ID to export")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	_ = exportCmd.MarkFlagRequired("run")
}

type exportRow struct {
	Team       string  `json:"team"`
	Estimator  string  `json:"estimator"`
	Intercept  float64 `json:"intercept"`
	Slope      float64 `json:"slope"`
	SlopeSE    float64 `json:"slope_se"`
	SlopeLower float64 `json:"slope_lower"`
	SlopeUpper float64 `json:"slope_upper"`
	Degenerate bool    `json:"degenerate"`
}

type exportRun struct {
	ID               string      `json:"id"`
	CreatedAt        string      `json:"created_at"`
	Exponent         float64     `json:"exponent"`
	MinSeasons       int         `json:"min_seasons"`
	GroupsTotal      int         `json:"groups_total"`
	GroupsSkipped    int         `json:"groups_skipped"`
	IntervalsWidened int         `json:"intervals_widened"`
	CrossedPooled    int         `json:"crossed_pooled"`
	PooledIntercept  float64     `json:"pooled_intercept"`
	PooledSlope      float64     `json:"pooled_slope"`
	PooledSlopeSE    float64     `json:"pooled_slope_se"`
	InterceptVar     float64     `json:"intercept_var"`
	SlopeVar         float64     `json:"slope_var"`
	Correlation      float64     `json:"correlation"`
	ResidualVar      float64     `json:"residual_var"`
	Rows             []exportRow `json:"rows"`
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(ctx) }()

	run, err := app.RunRepo.Get(ctx, exportRunID)
	if err != nil {
		return err
	}

	data := buildExportRun(run)

	output := os.Stdout
	if exportOutput != "" {
		output, err = os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = output.Close() }()
	}

	switch exportFormat {
	case "json":
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case "csv":
		writer := csv.NewWriter(output)
		defer writer.Flush()

		header := []string{"run_id", "team", "estimator", "intercept", "slope", "slope_se", "slope_lower", "slope_upper", "degenerate"}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}

		for _, r := range data.Rows {
			row := []string{
				data.ID, r.Team, r.Estimator,
				fmt.Sprintf("%.6f", r.Intercept), fmt.Sprintf("%.6f", r.Slope),
				fmt.Sprintf("%.6f", r.SlopeSE),
				fmt.Sprintf("%.6f", r.SlopeLower), fmt.Sprintf("%.6f", r.SlopeUpper),
				fmt.Sprintf("%t", r.Degenerate),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported format: %s (use json or csv)", exportFormat)
	}

	if exportOutput != "" {
		fmt.Fprintf(os.Stderr, "Exported run %s to %s\n", data.ID, exportOutput)
	}

	return nil
}

func buildExportRun(run *domain.SavedRun) exportRun {
	s := run.Summary
	out := exportRun{
		ID:               s.ID,
		CreatedAt:        s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Exponent:         s.Exponent,
		MinSeasons:       s.MinSeasons,
		GroupsTotal:      s.GroupsTotal,
		GroupsSkipped:    s.GroupsSkipped,
		IntervalsWidened: s.IntervalsWidened,
		CrossedPooled:    s.CrossedPooled,
		PooledIntercept:  run.Pooled.Intercept,
		PooledSlope:      run.Pooled.Slope,
		PooledSlopeSE:    run.Pooled.SlopeSE,
		InterceptVar:     run.Components.InterceptVar(),
		SlopeVar:         run.Components.SlopeVar(),
		Correlation:      run.Components.Correlation(),
		ResidualVar:      run.Components.Resid,
	}

	for _, r := range run.Rows {
		out.Rows = append(out.Rows, exportRow{
			Team:       r.Group,
			Estimator:  string(r.Estimator),
			Intercept:  r.Estimate.Intercept,
			Slope:      r.Estimate.Slope,
			SlopeSE:    r.Estimate.SlopeSE,
			SlopeLower: r.Estimate.SlopeLower(),
			SlopeUpper: r.Estimate.SlopeUpper(),
			Degenerate: r.Estimate.Degenerate,
		})
	}
	return out
}
