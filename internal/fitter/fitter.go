package fitter

import (
	"context"
	"fmt"
	"math"

	"histfit/domain/core"
	"histfit/domain/model"
	"histfit/internal/likelihood"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// boundsPenalty steers the unconstrained optimizer back inside the declared
// parameter box: the objective is evaluated at the clamped point plus a
// quadratic penalty on the violation.
const boundsPenalty = 1e6

// Fitter finds the parameter vector minimizing -2 log L. A Fitter holds only
// immutable configuration; every Fit call builds its own state, so concurrent
// fits against the same Fitter and Model are safe.
type Fitter struct {
	maxIter int
	tol     float64
}

// Option configures a Fitter.
type Option func(*Fitter)

// WithMaxIterations caps the optimizer's major iterations.
func WithMaxIterations(n int) Option {
	return func(f *Fitter) { f.maxIter = n }
}

// WithTolerance sets the absolute function-convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(f *Fitter) { f.tol = tol }
}

// New creates a fitter with default settings.
func New(opts ...Option) *Fitter {
	f := &Fitter{
		maxIter: 10000,
		tol:     1e-10,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Request defines one maximum-likelihood fit.
type Request struct {
	Model *model.Model
	Data  []float64

	// Init optionally replaces the model's suggested initial vector.
	Init []float64
	// Fixed optionally replaces the model's fixed-parameter mask. Fixed
	// parameters keep their Init value exactly.
	Fixed []bool
	// Uncertainties requests per-parameter uncertainties from the inverse
	// Hessian at the minimum.
	Uncertainties bool
}

// Result is the outcome of a converged fit.
type Result struct {
	Params []float64 `json:"params"`
	// Uncertainties holds the inverse-Hessian uncertainties; zero entries
	// for fixed parameters. Nil unless requested.
	Uncertainties []float64 `json:"uncertainties,omitempty"`
	LogLikelihood float64   `json:"log_likelihood"`
	TwoNLL        float64   `json:"two_nll"`
	FuncEvals     int       `json:"func_evals"`
}

// Fit minimizes -2 log L over the free parameters. Fixed parameters never
// move; bounds are respected via clamping with a penalty. Non-convergence
// and singular Hessians surface as core fit errors.
func (f *Fitter) Fit(ctx context.Context, req Request) (*Result, error) {
	if req.Model == nil {
		return nil, fmt.Errorf("fit request has no model")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eval := likelihood.New(req.Model)

	init := req.Init
	if init == nil {
		init = req.Model.Init()
	}
	if len(init) != req.Model.NumParams() {
		return nil, fmt.Errorf("initial vector length %d, model expects %d", len(init), req.Model.NumParams())
	}

	fixed := req.Fixed
	if fixed == nil {
		fixed = req.Model.FixedMask()
	}
	if len(fixed) != req.Model.NumParams() {
		return nil, fmt.Errorf("fixed mask length %d, model expects %d", len(fixed), req.Model.NumParams())
	}

	bounds := req.Model.Bounds()
	for i := range init {
		if !fixed[i] && (init[i] < bounds[i][0] || init[i] > bounds[i][1]) {
			return nil, core.NewOutOfBoundsError(req.Model.ParameterNames()[i], init[i], bounds[i][0], bounds[i][1])
		}
	}

	free := freeIndices(fixed)
	if len(free) == 0 {
		return evaluateFixedPoint(eval, init, req.Data)
	}

	full := append([]float64(nil), init...)
	objective := func(x []float64) float64 {
		penalty := 0.0
		for k, i := range free {
			v := x[k]
			if v < bounds[i][0] {
				d := bounds[i][0] - v
				penalty += boundsPenalty * d * d
				v = bounds[i][0]
			} else if v > bounds[i][1] {
				d := v - bounds[i][1]
				penalty += boundsPenalty * d * d
				v = bounds[i][1]
			}
			full[i] = v
		}
		nll, err := eval.TwoNLL(full, req.Data)
		if err != nil {
			return math.Inf(1)
		}
		return nll + penalty
	}

	x0 := make([]float64, len(free))
	for k, i := range free {
		x0[k] = init[i]
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   f.tol,
			Iterations: 100,
		},
		MajorIterations: f.maxIter,
	}

	opt, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNoConvergence, err)
	}
	if opt.Status != optimize.FunctionConvergence && opt.Status != optimize.Success &&
		opt.Status != optimize.GradientThreshold {
		return nil, fmt.Errorf("%w: optimizer status %v", core.ErrNoConvergence, opt.Status)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := append([]float64(nil), init...)
	for k, i := range free {
		v := opt.X[k]
		// Clamp residual boundary overshoot from the penalty formulation.
		if v < bounds[i][0] {
			v = bounds[i][0]
		} else if v > bounds[i][1] {
			v = bounds[i][1]
		}
		params[i] = v
	}

	logp, err := eval.LogLikelihood(params, req.Data)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Params:        params,
		LogLikelihood: logp,
		TwoNLL:        -2 * logp,
		FuncEvals:     opt.FuncEvaluations,
	}

	if req.Uncertainties {
		unc, err := f.uncertainties(eval, params, req.Data, free)
		if err != nil {
			return nil, err
		}
		result.Uncertainties = unc
	}

	return result, nil
}

// uncertainties inverts the numerical Hessian of -log L over the free
// subspace. Fixed parameters report zero uncertainty.
func (f *Fitter) uncertainties(eval *likelihood.Evaluator, params, data []float64, free []int) ([]float64, error) {
	full := append([]float64(nil), params...)
	nll := func(x []float64) float64 {
		for k, i := range free {
			full[i] = x[k]
		}
		logp, err := eval.LogLikelihood(full, data)
		if err != nil {
			return math.Inf(1)
		}
		return -logp
	}

	x := make([]float64, len(free))
	for k, i := range free {
		x[k] = params[i]
	}

	hess := mat.NewSymDense(len(free), nil)
	fd.Hessian(hess, nll, x, nil)

	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return nil, core.ErrSingularHessian
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularHessian, err)
	}

	out := make([]float64, len(params))
	for k, i := range free {
		v := cov.At(k, k)
		if v < 0 || math.IsNaN(v) {
			return nil, core.ErrSingularHessian
		}
		out[i] = math.Sqrt(v)
	}
	return out, nil
}

// evaluateFixedPoint handles the degenerate all-fixed request: no
// optimization, just the likelihood at the initial point.
func evaluateFixedPoint(eval *likelihood.Evaluator, init, data []float64) (*Result, error) {
	logp, err := eval.LogLikelihood(init, data)
	if err != nil {
		return nil, err
	}
	return &Result{
		Params:        append([]float64(nil), init...),
		LogLikelihood: logp,
		TwoNLL:        -2 * logp,
		FuncEvals:     1,
	}, nil
}

func freeIndices(fixed []bool) []int {
	var out []int
	for i, fx := range fixed {
		if !fx {
			out = append(out, i)
		}
	}
	return out
}
