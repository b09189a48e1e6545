package scan

import (
	"context"
	"fmt"
	"math"

	"histfit/domain/core"
	"histfit/domain/model"
	"histfit/internal/fitter"

	"golang.org/x/sync/errgroup"
)

// Driver produces profile-likelihood curves: for each grid value the target
// parameter is pinned via the fixed-parameter mask and the remaining free
// parameters are refit. Points are independent fits, so the driver runs them
// with bounded parallelism (the fitter is reentrant).
type Driver struct {
	fitter      *fitter.Fitter
	parallelism int
}

// Option configures a Driver.
type Option func(*Driver)

// WithParallelism bounds the number of concurrent scan-point fits.
func WithParallelism(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.parallelism = n
		}
	}
}

// New creates a scan driver around the given fitter.
func New(f *fitter.Fitter, opts ...Option) *Driver {
	d := &Driver{fitter: f, parallelism: 4}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Point is one entry of a profile-likelihood curve.
type Point struct {
	Value    float64 `json:"value"`
	DeltaNLL float64 `json:"delta_nll"`
}

// Curve is an ordered profile-likelihood scan result. Point order matches
// the input grid order.
type Curve struct {
	Parameter core.ParameterName `json:"parameter"`
	Points    []Point            `json:"points"`
	// BestFit is the unconditional minimum the curve is measured against.
	BestFit *fitter.Result `json:"best_fit"`
}

// ProfileScan fixes target to each grid value in turn and refits the
// remaining parameters, recording delta(-2 log L) relative to the
// unconditional best fit. Grid values outside the parameter's declared
// bounds are rejected before any fit runs.
func (d *Driver) ProfileScan(ctx context.Context, m *model.Model, data []float64, target core.ParameterName, values []float64) (*Curve, error) {
	idx, err := m.ParameterIndex(target)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("scan grid for %s is empty", target)
	}

	bounds := m.Bounds()[idx]
	for _, v := range values {
		if v < bounds[0] || v > bounds[1] {
			return nil, core.NewOutOfBoundsError(target.String(), v, bounds[0], bounds[1])
		}
	}
	if m.FixedMask()[idx] {
		return nil, fmt.Errorf("cannot scan fixed parameter %s", target)
	}

	best, err := d.fitter.Fit(ctx, fitter.Request{Model: m, Data: data})
	if err != nil {
		return nil, fmt.Errorf("unconditional fit failed: %w", err)
	}

	points := make([]Point, len(values))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)

	for i, v := range values {
		i, v := i, v // per-iteration copies: toolchain predates Go 1.22 loopvar semantics
		g.Go(func() error {
			init := append([]float64(nil), best.Params...)
			init[idx] = v

			fixed := append([]bool(nil), m.FixedMask()...)
			fixed[idx] = true

			res, err := d.fitter.Fit(gctx, fitter.Request{
				Model: m,
				Data:  data,
				Init:  init,
				Fixed: fixed,
			})
			if err != nil {
				return fmt.Errorf("scan point %s=%g: %w", target, v, err)
			}
			points[i] = Point{Value: v, DeltaNLL: res.TwoNLL - best.TwoNLL}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Curve{Parameter: target, Points: points, BestFit: best}, nil
}

// Interval linearly interpolates the grid values where the curve crosses the
// given delta(-2 log L) level (1.0 for a 68% interval on one parameter).
// Returns an error when the curve never crosses on one of the sides.
func (c *Curve) Interval(level float64) (lo, hi float64, err error) {
	minIdx := 0
	for i := range c.Points {
		if c.Points[i].DeltaNLL < c.Points[minIdx].DeltaNLL {
			minIdx = i
		}
	}

	lo, ok := crossLeft(c.Points[:minIdx+1], level)
	if !ok {
		return 0, 0, fmt.Errorf("curve does not cross level %g below the minimum", level)
	}
	hi, ok = crossRight(c.Points[minIdx:], level)
	if !ok {
		return 0, 0, fmt.Errorf("curve does not cross level %g above the minimum", level)
	}
	return lo, hi, nil
}

func crossLeft(pts []Point, level float64) (float64, bool) {
	for i := len(pts) - 1; i > 0; i-- {
		a, b := pts[i-1], pts[i]
		if a.DeltaNLL >= level && b.DeltaNLL < level {
			return interpolate(a, b, level), true
		}
	}
	return 0, false
}

func crossRight(pts []Point, level float64) (float64, bool) {
	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		if a.DeltaNLL < level && b.DeltaNLL >= level {
			return interpolate(a, b, level), true
		}
	}
	return 0, false
}

func interpolate(a, b Point, level float64) float64 {
	if math.Abs(b.DeltaNLL-a.DeltaNLL) < 1e-12 {
		return a.Value
	}
	t := (level - a.DeltaNLL) / (b.DeltaNLL - a.DeltaNLL)
	return a.Value + t*(b.Value-a.Value)
}
