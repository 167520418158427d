// Package turso implements the storage ports against a libsql database.
package turso

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emiliopalmerini/pennant/internal/database"
	"github.com/emiliopalmerini/pennant/internal/domain"
	"github.com/emiliopalmerini/pennant/internal/ports"
)

// Turso drops idle Hrana streams; read queries are retried on that error.
const maxQueryRetries = 2

type SeasonRepository struct {
	db *sql.DB
}

func NewSeasonRepository(db *sql.DB) *SeasonRepository {
	return &SeasonRepository{db: db}
}

func (r *SeasonRepository) UpsertBatch(ctx context.Context, records []domain.TeamSeason) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO team_seasons (team, season, runs_scored, runs_allowed, wins, losses)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (team, season) DO UPDATE SET
			runs_scored = excluded.runs_scored,
			runs_allowed = excluded.runs_allowed,
			wins = excluded.wins,
			losses = excluded.losses
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	written := 0
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Team, rec.Season, rec.RunsScored, rec.RunsAllowed, rec.Wins, rec.Losses); err != nil {
			return 0, fmt.Errorf("failed to upsert %s/%d: %w", rec.Team, rec.Season, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seasons: %w", err)
	}
	return written, nil
}

func (r *SeasonRepository) ListAll(ctx context.Context) ([]domain.TeamSeason, error) {
	return database.WithRetry(ctx, maxQueryRetries, func() ([]domain.TeamSeason, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT team, season, runs_scored, runs_allowed, wins, losses
			FROM team_seasons
			ORDER BY team, season
		`)
		if err != nil {
			return nil, fmt.Errorf("failed to list seasons: %w", err)
		}
		defer func() { _ = rows.Close() }()

		var records []domain.TeamSeason
		for rows.Next() {
			var rec domain.TeamSeason
			if err := rows.Scan(&rec.Team, &rec.Season, &rec.RunsScored, &rec.RunsAllowed, &rec.Wins, &rec.Losses); err != nil {
				return nil, fmt.Errorf("failed to scan season: %w", err)
			}
			records = append(records, rec)
		}
		return records, rows.Err()
	})
}

func (r *SeasonRepository) ListTeams(ctx context.Context) ([]ports.TeamSummary, error) {
	return database.WithRetry(ctx, maxQueryRetries, func() ([]ports.TeamSummary, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT team, COUNT(*), MIN(season), MAX(season)
			FROM team_seasons
			GROUP BY team
			ORDER BY team
		`)
		if err != nil {
			return nil, fmt.Errorf("failed to list teams: %w", err)
		}
		defer func() { _ = rows.Close() }()

		var teams []ports.TeamSummary
		for rows.Next() {
			var t ports.TeamSummary
			if err := rows.Scan(&t.Team, &t.Seasons, &t.FirstSeason, &t.LastSeason); err != nil {
				return nil, fmt.Errorf("failed to scan team: %w", err)
			}
			teams = append(teams, t)
		}
		return teams, rows.Err()
	})
}
