package domain

import (
	"fmt"
	"math"
)

// DefaultExponent is the pythagorean exponent used when none is configured.
// 1.83 is the conventional value for run-level baseball data.
const DefaultExponent = 1.83

// TeamSeason is one raw imported record: a team's runs and win/loss totals
// for a single season.
type TeamSeason struct {
	Team        string
	Season      int
	RunsScored  int64
	RunsAllowed int64
	Wins        int64
	Losses      int64
}

// Validate checks the count invariants the predictor and response derivations
// depend on.
func (t TeamSeason) Validate() error {
	if t.Team == "" {
		return fmt.Errorf("season %d: missing team identifier", t.Season)
	}
	if t.RunsScored <= 0 || t.RunsAllowed <= 0 {
		return fmt.Errorf("team %q season %d: runs scored and allowed must be positive (got %d/%d)",
			t.Team, t.Season, t.RunsScored, t.RunsAllowed)
	}
	if t.Wins < 0 || t.Losses < 0 || t.Wins+t.Losses == 0 {
		return fmt.Errorf("team %q season %d: invalid win/loss record %d-%d",
			t.Team, t.Season, t.Wins, t.Losses)
	}
	return nil
}

// Pythagorean returns the pythagorean expectation rs^p / (rs^p + ra^p).
// Defined whenever both counts are positive.
func (t TeamSeason) Pythagorean(exponent float64) float64 {
	rs := math.Pow(float64(t.RunsScored), exponent)
	ra := math.Pow(float64(t.RunsAllowed), exponent)
	return rs / (rs + ra)
}

// WinPct returns wins / (wins + losses).
func (t TeamSeason) WinPct() float64 {
	return float64(t.Wins) / float64(t.Wins+t.Losses)
}
