package fitter

import (
	"context"
	"errors"
	"math"
	"testing"

	"histfit/domain/core"
	"histfit/domain/model"
	"histfit/internal/testkit"
)

func buildModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Build(testkit.SimpleWorkspace(), "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return m
}

func TestFitRecoversSignalStrength(t *testing.T) {
	// 120 observed = 100 background + mu * 20 signal: muhat is exactly one.
	m := buildModel(t)
	f := New()

	res, err := f.Fit(context.Background(), Request{
		Model:         m,
		Data:          []float64{120},
		Uncertainties: true,
	})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	if math.Abs(res.Params[0]-1.0) > 1e-3 {
		t.Errorf("expected muhat close to 1, got %v", res.Params[0])
	}
	if res.FuncEvals == 0 {
		t.Error("expected at least one function evaluation")
	}

	// Single Poisson bin: d2(-lnL)/dmu2 at the minimum is x*s^2/lambda^2.
	want := 1.0 / math.Sqrt(120*400.0/14400.0)
	if math.Abs(res.Uncertainties[0]-want) > 0.01 {
		t.Errorf("expected uncertainty near %v, got %v", want, res.Uncertainties[0])
	}
}

func TestFitWithNuisanceParameters(t *testing.T) {
	m, err := model.Build(testkit.SystematicsWorkspace(), "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	f := New()

	res, err := f.Fit(context.Background(), Request{
		Model:         m,
		Data:          []float64{120, 60},
		Uncertainties: true,
	})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	// Observations match the nominal prediction, so the constrained nuisance
	// parameters should stay near their centers and muhat near one.
	if math.Abs(res.Params[0]-1.0) > 0.05 {
		t.Errorf("expected muhat near 1, got %v", res.Params[0])
	}
	idx, _ := m.ParameterIndex("shape_sys")
	if math.Abs(res.Params[idx]) > 0.1 {
		t.Errorf("expected shape_sys near 0, got %v", res.Params[idx])
	}
	for i, u := range res.Uncertainties {
		if u <= 0 {
			t.Errorf("free parameter %d reports non-positive uncertainty %v", i, u)
		}
	}
}

func TestFitDeterminism(t *testing.T) {
	m := buildModel(t)
	f := New()

	first, err := f.Fit(context.Background(), Request{Model: m, Data: []float64{120}})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	second, err := f.Fit(context.Background(), Request{Model: m, Data: []float64{120}})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	if first.Params[0] != second.Params[0] || first.TwoNLL != second.TwoNLL {
		t.Errorf("identical requests must give bit-identical results: %v vs %v", first, second)
	}
}

func TestFitFixedParameters(t *testing.T) {
	m := buildModel(t)
	f := New()

	res, err := f.Fit(context.Background(), Request{
		Model: m,
		Data:  []float64{120},
		Init:  []float64{2.5},
		Fixed: []bool{true},
	})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	// Fixed parameters keep their initial value exactly, not approximately.
	if res.Params[0] != 2.5 {
		t.Errorf("fixed parameter moved: %v", res.Params[0])
	}
	if res.FuncEvals != 1 {
		t.Errorf("all-fixed fit should evaluate once, got %d", res.FuncEvals)
	}
}

func TestFitConditionalVersusUnconditional(t *testing.T) {
	m := buildModel(t)
	f := New()

	best, err := f.Fit(context.Background(), Request{Model: m, Data: []float64{120}})
	if err != nil {
		t.Fatalf("unconditional fit failed: %v", err)
	}

	pinned, err := f.Fit(context.Background(), Request{
		Model: m,
		Data:  []float64{120},
		Init:  []float64{2},
		Fixed: []bool{true},
	})
	if err != nil {
		t.Fatalf("conditional fit failed: %v", err)
	}

	if pinned.TwoNLL < best.TwoNLL {
		t.Errorf("conditional minimum %v must not beat the unconditional %v", pinned.TwoNLL, best.TwoNLL)
	}
}

func TestFitInputChecks(t *testing.T) {
	m := buildModel(t)
	f := New()
	ctx := context.Background()

	t.Run("missing model", func(t *testing.T) {
		if _, err := f.Fit(ctx, Request{Data: []float64{120}}); err == nil {
			t.Error("expected error for missing model")
		}
	})

	t.Run("init out of bounds", func(t *testing.T) {
		_, err := f.Fit(ctx, Request{Model: m, Data: []float64{120}, Init: []float64{20}})
		if !errors.Is(err, core.ErrOutOfBounds) {
			t.Errorf("expected ErrOutOfBounds, got: %v", err)
		}
	})

	t.Run("wrong init length", func(t *testing.T) {
		if _, err := f.Fit(ctx, Request{Model: m, Data: []float64{120}, Init: []float64{1, 1}}); err == nil {
			t.Error("expected error for wrong init length")
		}
	})

	t.Run("wrong mask length", func(t *testing.T) {
		if _, err := f.Fit(ctx, Request{Model: m, Data: []float64{120}, Fixed: []bool{true, false}}); err == nil {
			t.Error("expected error for wrong mask length")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := f.Fit(cancelled, Request{Model: m, Data: []float64{120}}); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestFitRespectsBounds(t *testing.T) {
	// Observation far above anything the bounded mu can reach: the fit must
	// stop at the upper bound instead of running away.
	m := buildModel(t)
	f := New()

	res, err := f.Fit(context.Background(), Request{Model: m, Data: []float64{10000}})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if res.Params[0] < 0 || res.Params[0] > 10 {
		t.Errorf("fitted value %v escaped the declared bounds [0, 10]", res.Params[0])
	}
	if math.Abs(res.Params[0]-10) > 0.01 {
		t.Errorf("expected the fit pinned at the upper bound, got %v", res.Params[0])
	}
}
