package model

import (
	"errors"
	"math"
	"testing"

	"histfit/domain/core"
	"histfit/domain/workspace"
	"histfit/internal/testkit"
)

func TestBuildSimple(t *testing.T) {
	m, err := Build(testkit.SimpleWorkspace(), "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if m.NumParams() != 1 {
		t.Fatalf("expected 1 parameter, got %d", m.NumParams())
	}
	if m.TotalBins() != 1 {
		t.Errorf("expected 1 bin, got %d", m.TotalBins())
	}

	p := m.Parameters()[0]
	if p.Name != testkit.POIName() || !p.IsPOI {
		t.Errorf("expected POI %s first, got %+v", testkit.POIName(), p)
	}
	if p.Init != 1 || p.Bounds != [2]float64{0, 10} || p.Fixed {
		t.Errorf("unexpected normfactor defaults: %+v", p)
	}
	if p.Constraint != ConstraintNone {
		t.Errorf("normfactor must be unconstrained, got %s", p.Constraint)
	}
	if m.POIIndex() != 0 {
		t.Errorf("expected POI index 0, got %d", m.POIIndex())
	}
	if m.Hash() == "" {
		t.Error("expected a non-empty model hash")
	}
}

func TestBuildParameterOrder(t *testing.T) {
	m, err := Build(testkit.SystematicsWorkspace(), "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// POI first, then first-declaration order; staterror expands per bin.
	want := []string{"mu", "shape_sys", "bkg_norm", "bkg_stat[0]", "bkg_stat[1]"}
	got := m.ParameterNames()
	if len(got) != len(want) {
		t.Fatalf("expected %d parameters, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBuildConstraints(t *testing.T) {
	m, err := Build(testkit.SystematicsWorkspace(), "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	params := m.Parameters()
	byName := make(map[string]Parameter, len(params))
	for _, p := range params {
		byName[p.Name.String()] = p
	}

	shape := byName["shape_sys"]
	if shape.Constraint != ConstraintNormal || shape.Center != 0 || shape.Sigma != 1 {
		t.Errorf("histosys constraint: expected unit normal at zero, got %+v", shape)
	}
	if shape.Init != 0 || shape.Bounds != [2]float64{-5, 5} {
		t.Errorf("histosys defaults: %+v", shape)
	}

	norm := byName["bkg_norm"]
	if norm.Constraint != ConstraintLogNormal || norm.Center != 1 {
		t.Errorf("normsys constraint: expected log-normal at one, got %+v", norm)
	}
	wantSigma := (math.Log(1.1) - math.Log(0.9)) / 2
	if math.Abs(norm.Sigma-wantSigma) > 1e-15 {
		t.Errorf("normsys sigma: expected %v, got %v", wantSigma, norm.Sigma)
	}

	stat := byName["bkg_stat[1]"]
	if stat.Constraint != ConstraintNormal || stat.Center != 1 || stat.Sigma != 0.08 {
		t.Errorf("staterror constraint: %+v", stat)
	}

	if n := len(m.Constraints()); n != 4 {
		t.Errorf("expected 4 constraint terms, got %d", n)
	}
}

func TestBuildPOI(t *testing.T) {
	t.Run("unknown POI", func(t *testing.T) {
		ws := testkit.SimpleWorkspace()
		ws.Measurements[0].Config.POI = "nonexistent"
		if _, err := Build(ws, ""); !errors.Is(err, core.ErrUnknownPOI) {
			t.Errorf("expected ErrUnknownPOI, got: %v", err)
		}
	})

	t.Run("POI must be a normfactor", func(t *testing.T) {
		ws := testkit.SystematicsWorkspace()
		ws.Measurements[0].Config.POI = "bkg_norm"
		if _, err := Build(ws, ""); !errors.Is(err, core.ErrUnknownPOI) {
			t.Errorf("expected ErrUnknownPOI for non-normfactor POI, got: %v", err)
		}
	})

	t.Run("unknown measurement", func(t *testing.T) {
		if _, err := Build(testkit.SimpleWorkspace(), "nonexistent"); !core.IsNotFoundError(err) {
			t.Errorf("expected a not-found error, got: %v", err)
		}
	})
}

func TestBuildRejectsTypeConflict(t *testing.T) {
	ws := testkit.SimpleWorkspace()
	ws.Channels[0].Samples[1].Modifiers = append(ws.Channels[0].Samples[1].Modifiers,
		workspace.Modifier{Name: "mu", Type: workspace.ModifierNormSys, Hi: 1.1, Lo: 0.9})
	if _, err := Build(ws, ""); err == nil {
		t.Error("expected error for a name declared under two modifier types")
	}
}

func TestBuildOverrides(t *testing.T) {
	t.Run("init and bounds", func(t *testing.T) {
		ws := testkit.SimpleWorkspace()
		ws.Measurements[0].Config.Parameters = []workspace.ParameterConfig{
			{Name: "mu", Inits: []float64{2}, Bounds: [][2]float64{{0, 5}}},
		}
		m, err := Build(ws, "")
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		p := m.Parameters()[0]
		if p.Init != 2 || p.Bounds != [2]float64{0, 5} {
			t.Errorf("override not applied: %+v", p)
		}
	})

	t.Run("fixed", func(t *testing.T) {
		ws := testkit.SystematicsWorkspace()
		ws.Measurements[0].Config.Parameters = []workspace.ParameterConfig{
			{Name: "shape_sys", Fixed: true},
		}
		m, err := Build(ws, "")
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		i, err := m.ParameterIndex("shape_sys")
		if err != nil {
			t.Fatalf("parameter lookup failed: %v", err)
		}
		if !m.FixedMask()[i] {
			t.Error("expected shape_sys to be fixed")
		}
	})

	t.Run("staterror base name fans out", func(t *testing.T) {
		ws := testkit.SystematicsWorkspace()
		ws.Measurements[0].Config.Parameters = []workspace.ParameterConfig{
			{Name: "bkg_stat", Fixed: true},
		}
		m, err := Build(ws, "")
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		for _, name := range []core.ParameterName{"bkg_stat[0]", "bkg_stat[1]"} {
			i, err := m.ParameterIndex(name)
			if err != nil {
				t.Fatalf("parameter lookup failed: %v", err)
			}
			if !m.FixedMask()[i] {
				t.Errorf("expected %s to be fixed", name)
			}
		}
	})

	t.Run("unknown override target", func(t *testing.T) {
		ws := testkit.SimpleWorkspace()
		ws.Measurements[0].Config.Parameters = []workspace.ParameterConfig{{Name: "nonexistent"}}
		if _, err := Build(ws, ""); !core.IsNotFoundError(err) {
			t.Errorf("expected a not-found error, got: %v", err)
		}
	})
}

func TestExpectedYields(t *testing.T) {
	t.Run("counting model", func(t *testing.T) {
		m, err := Build(testkit.SimpleWorkspace(), "")
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if y := m.ExpectedYields([]float64{1}); y[0] != 120 {
			t.Errorf("mu=1: expected 120, got %v", y[0])
		}
		if y := m.ExpectedYields([]float64{2}); y[0] != 140 {
			t.Errorf("mu=2: expected 140, got %v", y[0])
		}
		if y := m.ExpectedYields([]float64{0}); y[0] != 100 {
			t.Errorf("mu=0: expected 100, got %v", y[0])
		}
	})

	t.Run("histosys interpolation", func(t *testing.T) {
		m, err := Build(testkit.SystematicsWorkspace(), "")
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		// theta: mu, shape_sys, bkg_norm, bkg_stat[0], bkg_stat[1]
		nominal := m.ExpectedYields([]float64{1, 0, 1, 1, 1})
		if nominal[0] != 120 || nominal[1] != 60 {
			t.Fatalf("nominal point: expected [120 60], got %v", nominal)
		}

		up := m.ExpectedYields([]float64{1, 1, 1, 1, 1})
		if up[0] != 122 || up[1] != 61 {
			t.Errorf("alpha=+1 must reproduce the up template: got %v", up)
		}

		down := m.ExpectedYields([]float64{1, -1, 1, 1, 1})
		if down[0] != 118 || down[1] != 59 {
			t.Errorf("alpha=-1 must reproduce the down template: got %v", down)
		}

		half := m.ExpectedYields([]float64{1, 0.5, 1, 1, 1})
		if half[0] != 121 || half[1] != 60.5 {
			t.Errorf("alpha=0.5 must interpolate linearly: got %v", half)
		}
	})

	t.Run("multiplicative factors", func(t *testing.T) {
		m, err := Build(testkit.SystematicsWorkspace(), "")
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		y := m.ExpectedYields([]float64{1, 0, 1.1, 1, 1})
		if math.Abs(y[0]-130) > 1e-12 || math.Abs(y[1]-65) > 1e-12 {
			t.Errorf("bkg_norm=1.1: expected [130 65], got %v", y)
		}

		y = m.ExpectedYields([]float64{1, 0, 1, 1.2, 1})
		if math.Abs(y[0]-140) > 1e-12 || y[1] != 60 {
			t.Errorf("bkg_stat[0]=1.2 scales only bin 0: got %v", y)
		}
	})

	t.Run("two channels flatten in declaration order", func(t *testing.T) {
		m, err := Build(testkit.TwoChannelWorkspace(), "")
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if m.TotalBins() != 2 {
			t.Fatalf("expected 2 bins, got %d", m.TotalBins())
		}
		layout := m.Layout()
		if layout[0].Name != "SR" || layout[0].Offset != 0 || layout[1].Name != "CR" || layout[1].Offset != 1 {
			t.Errorf("unexpected layout: %+v", layout)
		}
		y := m.ExpectedYields(m.Init())
		if y[0] != 120 || y[1] != 200 {
			t.Errorf("expected [120 200], got %v", y)
		}
	})
}

func TestBuildSurvivesSerialization(t *testing.T) {
	ws := testkit.SystematicsWorkspace()
	direct, err := Build(ws, "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	raw, err := ws.MarshalWire()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	parsed, err := workspace.ParseWire(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	roundTripped, err := Build(parsed, "")
	if err != nil {
		t.Fatalf("build after round trip failed: %v", err)
	}

	if direct.Hash() != roundTripped.Hash() {
		t.Error("model hash must survive workspace serialization")
	}
	a, b := direct.Parameters(), roundTripped.Parameters()
	if len(a) != len(b) {
		t.Fatalf("parameter count changed: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("parameter %d changed: %+v vs %+v", i, a[i], b[i])
		}
	}
}
