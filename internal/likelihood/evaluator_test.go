package likelihood

import (
	"math"
	"testing"

	"histfit/domain/model"
	"histfit/internal/testkit"

	"gonum.org/v1/gonum/stat/distuv"
)

func simpleModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Build(testkit.SimpleWorkspace(), "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return m
}

func TestLogLikelihoodCountingModel(t *testing.T) {
	m := simpleModel(t)
	eval := New(m)

	got, err := eval.LogLikelihood([]float64{1}, []float64{120})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	// Single Poisson bin, no constraints: x ln(lambda) - lambda - lgamma(x+1).
	lg, _ := math.Lgamma(121)
	want := 120*math.Log(120) - 120 - lg
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}

	twoNLL, err := eval.TwoNLL([]float64{1}, []float64{120})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if twoNLL != -2*got {
		t.Errorf("TwoNLL must be -2 times the log-likelihood")
	}
}

func TestLogLikelihoodConstraints(t *testing.T) {
	ws := testkit.SystematicsWorkspace()
	m, err := model.Build(ws, "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	eval := New(m)

	theta := m.Init() // mu=1, shape_sys=0, bkg_norm=1, bkg_stat=[1 1]
	data := []float64{120, 60}

	got, err := eval.LogLikelihood(theta, data)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	want := 0.0
	for _, bin := range []struct{ x, lambda float64 }{{120, 120}, {60, 60}} {
		lg, _ := math.Lgamma(bin.x + 1)
		want += bin.x*math.Log(bin.lambda) - bin.lambda - lg
	}
	// shape_sys pulls a unit normal at zero, bkg_norm a log-normal at one,
	// and each staterror bin a normal at one with its declared width.
	sigma := (math.Log(1.1) - math.Log(0.9)) / 2
	want += distuv.Normal{Mu: 0, Sigma: 1}.LogProb(0)
	want += distuv.LogNormal{Mu: 0, Sigma: sigma}.LogProb(1)
	want += distuv.Normal{Mu: 1, Sigma: 0.05}.LogProb(1)
	want += distuv.Normal{Mu: 1, Sigma: 0.08}.LogProb(1)

	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLogLikelihoodDeterminism(t *testing.T) {
	m, err := model.Build(testkit.SystematicsWorkspace(), "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	eval := New(m)

	theta := []float64{1.3, 0.4, 0.97, 1.01, 0.99}
	data := []float64{120, 60}

	first, err := eval.LogLikelihood(theta, data)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := eval.LogLikelihood(theta, data)
		if err != nil {
			t.Fatalf("evaluation failed: %v", err)
		}
		if again != first {
			t.Fatalf("iteration %d: expected bit-identical result, got %v vs %v", i, again, first)
		}
	}
}

func TestLogLikelihoodInputChecks(t *testing.T) {
	eval := New(simpleModel(t))

	if _, err := eval.LogLikelihood([]float64{1, 2}, []float64{120}); err == nil {
		t.Error("expected error for wrong parameter vector length")
	}
	if _, err := eval.LogLikelihood([]float64{1}, []float64{120, 60}); err == nil {
		t.Error("expected error for wrong data vector length")
	}
}

func TestLogLikelihoodZeroYield(t *testing.T) {
	// mu=0 with a zero background template drives the expected yield to zero;
	// the floor keeps the result finite.
	ws := testkit.CountingWorkspace([]float64{5}, []float64{0}, []float64{10})
	m, err := model.Build(ws, "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	eval := New(m)

	got, err := eval.LogLikelihood([]float64{0}, []float64{5})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("expected a finite log-likelihood at the yield floor, got %v", got)
	}
}

func TestPoissonLogPMF(t *testing.T) {
	// Integer arguments match the exact pmf.
	want := math.Log(math.Exp(-3) * 27.0 / 6.0) // P(X=3 | lambda=3)
	if got := poissonLogPMF(3, 3); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Non-integer counts stay finite (weighted histograms).
	if got := poissonLogPMF(2.5, 3); math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("expected finite value for non-integer count, got %v", got)
	}

	if got := poissonLogPMF(-1, 3); !math.IsInf(got, -1) {
		t.Errorf("expected -Inf for negative count, got %v", got)
	}
}
