package ports

import (
	"context"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

// RunRepository persists completed comparison runs and their row tables.
type RunRepository interface {
	Save(ctx context.Context, run *domain.SavedRun) error
	Get(ctx context.Context, id string) (*domain.SavedRun, error)
	List(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
