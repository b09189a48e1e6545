package pulls

import (
	"math"
	"testing"

	"histfit/domain/model"
	"histfit/internal/fitter"
	"histfit/internal/testkit"
)

func systematicsModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Build(testkit.SystematicsWorkspace(), "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return m
}

func TestCompute(t *testing.T) {
	m := systematicsModel(t)
	// Parameters: mu, shape_sys, bkg_norm, bkg_stat[0], bkg_stat[1].
	res := &fitter.Result{
		Params:        []float64{1.2, 0.5, 0.95, 1.02, 0.99},
		Uncertainties: []float64{0.5, 1.0, 0.1, 0.05, 0.08},
	}

	ps, err := Compute(m, res)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	// The POI is excluded; the four nuisance parameters remain.
	if len(ps) != 4 {
		t.Fatalf("expected 4 pulls, got %d", len(ps))
	}
	for _, p := range ps {
		if p.Name == "mu" {
			t.Error("POI must not appear in the pull set")
		}
	}

	// shape_sys: (0.5 - 0) / 1.0
	if math.Abs(ps[0].Pull-0.5) > 1e-12 {
		t.Errorf("shape_sys pull: expected 0.5, got %v", ps[0].Pull)
	}
	// bkg_norm: (0.95 - 1) / 0.1
	if math.Abs(ps[1].Pull-(-0.5)) > 1e-12 {
		t.Errorf("bkg_norm pull: expected -0.5, got %v", ps[1].Pull)
	}
}

func TestComputeRequiresUncertainties(t *testing.T) {
	m := systematicsModel(t)
	if _, err := Compute(m, &fitter.Result{Params: m.Init()}); err == nil {
		t.Error("expected error for a result without uncertainties")
	}
}

func TestComputeSkipsFixedParameters(t *testing.T) {
	ws := testkit.SystematicsWorkspace()
	ws.Channels[0].Samples[1].Modifiers[1].Uncertainties = []float64{0, 0.08}

	m, err := model.Build(ws, "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	res := &fitter.Result{
		Params:        m.Init(),
		Uncertainties: make([]float64, m.NumParams()),
	}

	ps, err := Compute(m, res)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	for _, p := range ps {
		if p.Name == "bkg_stat[0]" {
			t.Error("zero-uncertainty staterror bins are fixed and must be skipped")
		}
	}
}

func TestSummarize(t *testing.T) {
	ps := []Pull{
		{Name: "a", Pull: 1},
		{Name: "b", Pull: -1},
		{Name: "c", Pull: 0},
		{Name: "d", Pull: 2},
	}

	s, err := Summarize(ps)
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}

	if s.Count != 4 {
		t.Errorf("expected count 4, got %d", s.Count)
	}
	if math.Abs(s.Mean-0.5) > 1e-12 {
		t.Errorf("expected mean 0.5, got %v", s.Mean)
	}
	if math.Abs(s.Median-0.5) > 1e-12 {
		t.Errorf("expected median 0.5, got %v", s.Median)
	}
	if s.MaxAbsPull != 2 {
		t.Errorf("expected max abs pull 2, got %v", s.MaxAbsPull)
	}
	if s.StdDev <= 0 {
		t.Errorf("expected positive standard deviation, got %v", s.StdDev)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s, err := Summarize(nil)
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if s.Count != 0 || s.Mean != 0 || s.MaxAbsPull != 0 {
		t.Errorf("expected zero summary for empty input, got %+v", s)
	}
}
