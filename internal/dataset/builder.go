// Package dataset turns raw team-season records into the validated,
// immutable dataset the fitters consume.
package dataset

import (
	"fmt"

	"github.com/emiliopalmerini/pennant/internal/domain"
)

// Config controls the predictor derivation.
type Config struct {
	// Exponent is the pythagorean exponent p in rs^p / (rs^p + ra^p).
	// Zero means domain.DefaultExponent.
	Exponent float64
}

// Build validates every record and derives the predictor and response.
// Validation is strict: a single bad record fails the build, since silently
// dropping rows would bias every estimator downstream.
func Build(records []domain.TeamSeason, cfg Config) (*domain.Dataset, error) {
	if cfg.Exponent == 0 {
		cfg.Exponent = domain.DefaultExponent
	}
	if cfg.Exponent < 0 {
		return nil, fmt.Errorf("pythagorean exponent must be positive, got %v", cfg.Exponent)
	}

	obs := make([]domain.Observation, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid record: %w", err)
		}
		obs = append(obs, domain.Observation{
			Group:  rec.Team,
			Period: rec.Season,
			X:      rec.Pythagorean(cfg.Exponent),
			Y:      rec.WinPct(),
		})
	}

	ds, err := domain.NewDataset(obs)
	if err != nil {
		return nil, err
	}
	return ds, nil
}
