package domain

import (
	"fmt"
	"sort"
)

// Observation is one group-period record: a team's season with its derived
// predictor (pythagorean expectation) and response (winning percentage).
type Observation struct {
	Group  string
	Period int
	X      float64
	Y      float64
}

// Dataset is an immutable collection of observations sharing one
// response/predictor/group schema. (Group, Period) pairs are unique.
type Dataset struct {
	obs []Observation
}

// MinObservations is the smallest dataset a two-parameter fit can use:
// one more observation than fixed-effect parameters.
const MinObservations = 3

// NewDataset validates and wraps a slice of observations. The slice is
// copied so later mutation of the caller's slice cannot leak in.
func NewDataset(obs []Observation) (*Dataset, error) {
	if len(obs) < MinObservations {
		return nil, fmt.Errorf("dataset needs at least %d observations, got %d", MinObservations, len(obs))
	}

	type key struct {
		group  string
		period int
	}
	seen := make(map[key]bool, len(obs))
	for _, o := range obs {
		k := key{o.Group, o.Period}
		if seen[k] {
			return nil, fmt.Errorf("duplicate observation for group %q period %d", o.Group, o.Period)
		}
		seen[k] = true
	}

	cp := make([]Observation, len(obs))
	copy(cp, obs)
	return &Dataset{obs: cp}, nil
}

// Len returns the number of observations.
func (d *Dataset) Len() int {
	return len(d.obs)
}

// Observations returns a copy of the underlying observations.
func (d *Dataset) Observations() []Observation {
	cp := make([]Observation, len(d.obs))
	copy(cp, d.obs)
	return cp
}

// XY returns the full predictor and response vectors, ignoring grouping.
func (d *Dataset) XY() (xs, ys []float64) {
	xs = make([]float64, len(d.obs))
	ys = make([]float64, len(d.obs))
	for i, o := range d.obs {
		xs[i] = o.X
		ys[i] = o.Y
	}
	return xs, ys
}

// Groups returns the distinct group identifiers in sorted order.
func (d *Dataset) Groups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, o := range d.obs {
		if !seen[o.Group] {
			seen[o.Group] = true
			groups = append(groups, o.Group)
		}
	}
	sort.Strings(groups)
	return groups
}

// ByGroup returns observations indexed by group identifier.
func (d *Dataset) ByGroup() map[string][]Observation {
	m := make(map[string][]Observation)
	for _, o := range d.obs {
		m[o.Group] = append(m[o.Group], o)
	}
	return m
}
