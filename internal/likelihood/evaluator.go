package likelihood

import (
	"fmt"
	"math"

	"histfit/domain/model"

	"gonum.org/v1/gonum/stat/distuv"
)

// yieldFloor keeps Poisson means strictly positive when a parameter point
// drives a predicted yield to zero or below.
const yieldFloor = 1e-10

// Evaluator computes the log-probability of observed data under a compiled
// model: a Poisson term per bin plus the model's constraint terms. The
// evaluator is stateless with respect to calls - identical (theta, data)
// inputs produce identical results, and a single Evaluator may be shared
// across goroutines.
type Evaluator struct {
	model       *model.Model
	constraints []model.Constraint
}

// New creates an evaluator for the given model.
func New(m *model.Model) *Evaluator {
	return &Evaluator{
		model:       m,
		constraints: m.Constraints(),
	}
}

// LogLikelihood returns log P(data | theta): the summed Poisson log-pmf over
// all bins plus the constraint log-densities of the nuisance parameters.
func (e *Evaluator) LogLikelihood(theta, data []float64) (float64, error) {
	if len(theta) != e.model.NumParams() {
		return 0, fmt.Errorf("parameter vector length %d, model expects %d", len(theta), e.model.NumParams())
	}
	if len(data) != e.model.TotalBins() {
		return 0, fmt.Errorf("data vector length %d, model expects %d bins", len(data), e.model.TotalBins())
	}

	expected := e.model.ExpectedYields(theta)

	logp := 0.0
	for b := range expected {
		lambda := expected[b]
		if lambda < yieldFloor {
			lambda = yieldFloor
		}
		logp += poissonLogPMF(data[b], lambda)
	}

	for _, c := range e.constraints {
		switch c.Kind {
		case model.ConstraintNormal:
			n := distuv.Normal{Mu: c.Center, Sigma: c.Sigma}
			logp += n.LogProb(theta[c.Param])
		case model.ConstraintLogNormal:
			// Centered at one: Mu is the log of the center.
			ln := distuv.LogNormal{Mu: math.Log(c.Center), Sigma: c.Sigma}
			logp += ln.LogProb(theta[c.Param])
		}
	}

	return logp, nil
}

// TwoNLL returns -2 log P(data | theta), the quantity the fitter minimizes.
func (e *Evaluator) TwoNLL(theta, data []float64) (float64, error) {
	logp, err := e.LogLikelihood(theta, data)
	if err != nil {
		return 0, err
	}
	return -2 * logp, nil
}

// poissonLogPMF is the continuous extension of the Poisson log-pmf,
// x*ln(lambda) - lambda - lgamma(x+1), so that non-integer observed counts
// (weighted histograms) remain valid inputs.
func poissonLogPMF(x, lambda float64) float64 {
	if x < 0 {
		return math.Inf(-1)
	}
	lg, _ := math.Lgamma(x + 1)
	return x*math.Log(lambda) - lambda - lg
}
