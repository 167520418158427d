package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emiliopalmerini/pennant/internal/adapters/otel"
	"github.com/emiliopalmerini/pennant/internal/adapters/turso"
	"github.com/emiliopalmerini/pennant/internal/database"
	"github.com/emiliopalmerini/pennant/internal/infrastructure/config"
	"github.com/emiliopalmerini/pennant/internal/ports"
)

// AppContext holds all shared dependencies for CLI commands.
type AppContext struct {
	DB         *sql.DB
	SeasonRepo ports.SeasonRepository
	RunRepo    ports.RunRepository
	Metrics    ports.MetricsExporter
	Config     *config.App
}

// NewAppContext creates an AppContext with all dependencies initialized.
// The metrics exporter degrades to a no-op when OTEL is not configured.
func NewAppContext(ctx context.Context) (*AppContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database.URL, cfg.Database.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var metrics ports.MetricsExporter
	if exporter, err := otel.NewExporter(ctx, otel.LoadConfig()); err == nil {
		metrics = exporter
	} else {
		metrics = otel.NewNoOpExporter()
	}

	return &AppContext{
		DB:         db,
		SeasonRepo: turso.NewSeasonRepository(db),
		RunRepo:    turso.NewRunRepository(db),
		Metrics:    metrics,
		Config:     cfg,
	}, nil
}

// Close releases all resources held by the AppContext.
func (a *AppContext) Close(ctx context.Context) error {
	if a.Metrics != nil {
		_ = a.Metrics.Close(ctx)
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
