package turso

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emiliopalmerini/pennant/internal/database"
	"github.com/emiliopalmerini/pennant/internal/domain"
	"github.com/emiliopalmerini/pennant/internal/util"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Save(ctx context.Context, run *domain.SavedRun) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	s := run.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO comparison_runs (
			id, exponent, min_seasons,
			sigma00, sigma01, sigma11, resid_var,
			pooled_intercept, pooled_slope, pooled_slope_se,
			groups_total, groups_skipped, intervals_widened, crossed_pooled,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.Exponent, s.MinSeasons,
		run.Components.Sigma[0][0], run.Components.Sigma[0][1], run.Components.Sigma[1][1], run.Components.Resid,
		run.Pooled.Intercept, run.Pooled.Slope, run.Pooled.SlopeSE,
		s.GroupsTotal, s.GroupsSkipped, s.IntervalsWidened, s.CrossedPooled,
		s.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO comparison_rows (run_id, team, estimator, intercept, slope, slope_se, degenerate)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rows insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range run.Rows {
		_, err := stmt.ExecContext(ctx,
			s.ID, row.Group, string(row.Estimator),
			row.Estimate.Intercept, row.Estimate.Slope, row.Estimate.SlopeSE,
			util.BoolToInt64(row.Estimate.Degenerate),
		)
		if err != nil {
			return fmt.Errorf("failed to insert row for %s/%s: %w", row.Group, row.Estimator, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func (r *RunRepository) Get(ctx context.Context, id string) (*domain.SavedRun, error) {
	return database.WithRetry(ctx, maxQueryRetries, func() (*domain.SavedRun, error) {
		return r.get(ctx, id)
	})
}

func (r *RunRepository) get(ctx context.Context, id string) (*domain.SavedRun, error) {
	run := &domain.SavedRun{}
	var createdAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, exponent, min_seasons,
			sigma00, sigma01, sigma11, resid_var,
			pooled_intercept, pooled_slope, pooled_slope_se,
			groups_total, groups_skipped, intervals_widened, crossed_pooled,
			created_at
		FROM comparison_runs WHERE id = ?
	`, id).Scan(
		&run.Summary.ID, &run.Summary.Exponent, &run.Summary.MinSeasons,
		&run.Components.Sigma[0][0], &run.Components.Sigma[0][1], &run.Components.Sigma[1][1], &run.Components.Resid,
		&run.Pooled.Intercept, &run.Pooled.Slope, &run.Pooled.SlopeSE,
		&run.Summary.GroupsTotal, &run.Summary.GroupsSkipped, &run.Summary.IntervalsWidened, &run.Summary.CrossedPooled,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.Components.Sigma[1][0] = run.Components.Sigma[0][1]
	run.Summary.PooledSlope = run.Pooled.Slope
	run.Summary.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	rows, err := r.db.QueryContext(ctx, `
		SELECT team, estimator, intercept, slope, slope_se, degenerate
		FROM comparison_rows WHERE run_id = ?
		ORDER BY team, estimator
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var row domain.ComparisonRow
		var estimator string
		var degenerate int64
		if err := rows.Scan(&row.Group, &estimator, &row.Estimate.Intercept, &row.Estimate.Slope, &row.Estimate.SlopeSE, &degenerate); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row.Estimator = domain.Estimator(estimator)
		row.Estimate.Degenerate = util.Int64ToBool(degenerate)
		run.Rows = append(run.Rows, row)
	}
	return run, rows.Err()
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	return database.WithRetry(ctx, maxQueryRetries, func() ([]domain.RunSummary, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, exponent, min_seasons, groups_total, groups_skipped,
				intervals_widened, crossed_pooled, pooled_slope, created_at
			FROM comparison_runs
			ORDER BY created_at DESC
			LIMIT ?
		`, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		defer func() { _ = rows.Close() }()

		var runs []domain.RunSummary
		for rows.Next() {
			var s domain.RunSummary
			var createdAt string
			if err := rows.Scan(&s.ID, &s.Exponent, &s.MinSeasons, &s.GroupsTotal, &s.GroupsSkipped,
				&s.IntervalsWidened, &s.CrossedPooled, &s.PooledSlope, &createdAt); err != nil {
				return nil, fmt.Errorf("failed to scan run: %w", err)
			}
			s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
			runs = append(runs, s)
		}
		return runs, rows.Err()
	})
}
