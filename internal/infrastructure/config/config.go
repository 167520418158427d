package config

import "github.com/kelseyhightower/envconfig"

// Database holds Turso database configuration.
type Database struct {
	URL       string `envconfig:"PENNANT_DATABASE_URL" required:"true"`
	AuthToken string `envconfig:"PENNANT_AUTH_TOKEN"`
}

// Fit holds defaults for the comparison fit.
type Fit struct {
	Exponent      float64 `envconfig:"PENNANT_EXPONENT" default:"1.83"`
	MinSeasons    int     `envconfig:"PENNANT_MIN_SEASONS" default:"2"`
	REMLTolerance float64 `envconfig:"PENNANT_REML_TOLERANCE" default:"1e-9"`
	REMLMaxIter   int     `envconfig:"PENNANT_REML_MAX_ITER" default:"500"`
}

// App holds the full application configuration.
type App struct {
	Database Database
	Fit      Fit
}

// Load loads application configuration from environment variables.
func Load() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg.Database); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &cfg.Fit); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFit loads only the fit defaults. Commands that read data from a
// CSV file instead of the database use this to avoid requiring a
// database URL.
func LoadFit() (*Fit, error) {
	var cfg Fit
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
