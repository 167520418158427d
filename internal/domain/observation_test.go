package domain

import (
	"errors"
	"testing"
)

func TestNewDataset(t *testing.T) {
	obs := []Observation{
		{Group: "BOS", Period: 2003, X: 0.55, Y: 0.58},
		{Group: "BOS", Period: 2004, X: 0.60, Y: 0.60},
		{Group: "NYA", Period: 2003, X: 0.56, Y: 0.62},
		{Group: "NYA", Period: 2004, X: 0.54, Y: 0.62},
	}

	ds, err := NewDataset(obs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != 4 {
		t.Errorf("expected 4 observations, got %d", ds.Len())
	}

	groups := ds.Groups()
	if len(groups) != 2 || groups[0] != "BOS" || groups[1] != "NYA" {
		t.Errorf("expected sorted groups [BOS NYA], got %v", groups)
	}

	byGroup := ds.ByGroup()
	if len(byGroup["BOS"]) != 2 || len(byGroup["NYA"]) != 2 {
		t.Errorf("unexpected group partition: %v", byGroup)
	}

	xs, ys := ds.XY()
	if len(xs) != 4 || len(ys) != 4 {
		t.Errorf("expected full vectors of length 4, got %d/%d", len(xs), len(ys))
	}
}

func TestNewDataset_RejectsDuplicates(t *testing.T) {
	obs := []Observation{
		{Group: "BOS", Period: 2004, X: 0.6, Y: 0.6},
		{Group: "BOS", Period: 2004, X: 0.61, Y: 0.59},
		{Group: "NYA", Period: 2004, X: 0.54, Y: 0.62},
	}
	if _, err := NewDataset(obs); err == nil {
		t.Fatal("expected duplicate (group, period) to be rejected")
	}
}

func TestNewDataset_RejectsTooSmall(t *testing.T) {
	obs := []Observation{
		{Group: "BOS", Period: 2003},
		{Group: "BOS", Period: 2004},
	}
	if _, err := NewDataset(obs); err == nil {
		t.Fatal("expected too-small dataset to be rejected")
	}
}

func TestNewDataset_CopiesInput(t *testing.T) {
	obs := []Observation{
		{Group: "A", Period: 1, X: 1, Y: 1},
		{Group: "A", Period: 2, X: 2, Y: 2},
		{Group: "B", Period: 1, X: 3, Y: 3},
	}
	ds, err := NewDataset(obs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obs[0].Group = "MUTATED"
	if ds.Observations()[0].Group != "A" {
		t.Error("dataset shares backing storage with caller slice")
	}
}

func TestErrorTypes(t *testing.T) {
	var err error = &SingularDesignError{Group: "TBA", N: 1}
	var sde *SingularDesignError
	if !errors.As(err, &sde) || sde.Group != "TBA" {
		t.Errorf("SingularDesignError lost group context: %v", err)
	}

	err = &DegenerateGroupingError{Groups: 1}
	var dge *DegenerateGroupingError
	if !errors.As(err, &dge) || dge.Groups != 1 {
		t.Errorf("DegenerateGroupingError lost context: %v", err)
	}

	err = &ConvergenceError{Iterations: 500, LastObjective: -12.5}
	var ce *ConvergenceError
	if !errors.As(err, &ce) || ce.Iterations != 500 {
		t.Errorf("ConvergenceError lost context: %v", err)
	}
}
