package ports

import (
	"context"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

// TeamSummary is one stored team with its season coverage.
type TeamSummary struct {
	Team        string
	Seasons     int64
	FirstSeason int64
	LastSeason  int64
}

// SeasonRepository stores imported team-season records.
type SeasonRepository interface {
	// UpsertBatch inserts or replaces records, returning the number written.
	UpsertBatch(ctx context.Context, records []domain.TeamSeason) (int, error)
	ListAll(ctx context.Context) ([]domain.TeamSeason, error)
	ListTeams(ctx context.Context) ([]TeamSummary, error)
}
