package model

import (
	"histfit/domain/core"
	"histfit/domain/workspace"
)

// ConstraintKind classifies the auxiliary term attached to a parameter.
type ConstraintKind string

const (
	// ConstraintNone marks an unconstrained parameter (normalization factors).
	ConstraintNone ConstraintKind = "none"
	// ConstraintNormal is a Gaussian auxiliary term centered at Center.
	ConstraintNormal ConstraintKind = "normal"
	// ConstraintLogNormal is a log-normal auxiliary term for multiplicative
	// factors centered at one.
	ConstraintLogNormal ConstraintKind = "lognormal"
)

// Parameter is one entry of the ordered parameter vector.
type Parameter struct {
	Name       core.ParameterName `json:"name"`
	Init       float64            `json:"init"`
	Bounds     [2]float64         `json:"bounds"`
	Fixed      bool               `json:"fixed"`
	Constraint ConstraintKind     `json:"constraint"`
	// Center and Sigma parameterize the constraint term. For normal
	// constraints Sigma is the absolute width; for log-normal constraints
	// Sigma is the width in log space.
	Center float64 `json:"center"`
	Sigma  float64 `json:"sigma"`
	IsPOI  bool    `json:"is_poi"`
}

// modifierTerm binds a sample modifier to its compiled parameter indices.
type modifierTerm struct {
	kind  workspace.ModifierType
	param int // scalar modifiers: single parameter index

	// histosys templates, absolute per-bin yields
	hiData []float64
	loData []float64

	// staterror: one parameter index per bin
	binParams []int
}

// sampleTerm is one sample's compiled yield expression.
type sampleTerm struct {
	name    core.SampleName
	nominal []float64
	mods    []modifierTerm
}

// channelTerm groups the compiled samples of one region.
type channelTerm struct {
	name    core.ChannelName
	nbins   int
	samples []sampleTerm
}

// ChannelLayout describes a channel's slot in the flattened yield vector.
type ChannelLayout struct {
	Name   core.ChannelName `json:"name"`
	Bins   int              `json:"bins"`
	Offset int              `json:"offset"`
}

// Model is the executable probability model compiled from a workspace.
// It is immutable once built: all evaluation methods are read-only and a
// single Model may be shared across concurrent fits.
type Model struct {
	params   []Parameter
	index    map[core.ParameterName]int
	channels []channelTerm
	layout   []ChannelLayout
	poiIndex int
	total    int
	hash     core.ModelHash
}

// NumParams returns the length of the parameter vector.
func (m *Model) NumParams() int { return len(m.params) }

// TotalBins returns the length of the flattened yield vector.
func (m *Model) TotalBins() int { return m.total }

// POIIndex returns the index of the parameter of interest.
func (m *Model) POIIndex() int { return m.poiIndex }

// Hash returns the deterministic fingerprint of the parameter layout.
func (m *Model) Hash() core.ModelHash { return m.hash }

// Parameters returns a copy of the ordered parameter vector.
func (m *Model) Parameters() []Parameter {
	out := make([]Parameter, len(m.params))
	copy(out, m.params)
	return out
}

// ParameterIndex resolves a parameter name to its vector index.
func (m *Model) ParameterIndex(name core.ParameterName) (int, error) {
	i, ok := m.index[name]
	if !ok {
		return 0, core.NewNotFoundError("parameter", name.String())
	}
	return i, nil
}

// ParameterNames returns the ordered semantic names of the vector.
func (m *Model) ParameterNames() []string {
	out := make([]string, len(m.params))
	for i := range m.params {
		out[i] = m.params[i].Name.String()
	}
	return out
}

// Init returns the suggested initial parameter vector.
func (m *Model) Init() []float64 {
	out := make([]float64, len(m.params))
	for i := range m.params {
		out[i] = m.params[i].Init
	}
	return out
}

// Bounds returns the per-parameter bounds.
func (m *Model) Bounds() [][2]float64 {
	out := make([][2]float64, len(m.params))
	for i := range m.params {
		out[i] = m.params[i].Bounds
	}
	return out
}

// FixedMask returns the default fixed/free flags.
func (m *Model) FixedMask() []bool {
	out := make([]bool, len(m.params))
	for i := range m.params {
		out[i] = m.params[i].Fixed
	}
	return out
}

// Constraint is one compiled auxiliary term of the likelihood.
type Constraint struct {
	Param  int            `json:"param"`
	Kind   ConstraintKind `json:"kind"`
	Center float64        `json:"center"`
	Sigma  float64        `json:"sigma"`
}

// Constraints returns the auxiliary terms for all constrained parameters.
func (m *Model) Constraints() []Constraint {
	var out []Constraint
	for i := range m.params {
		p := &m.params[i]
		if p.Constraint == ConstraintNone || p.Sigma <= 0 {
			continue
		}
		out = append(out, Constraint{Param: i, Kind: p.Constraint, Center: p.Center, Sigma: p.Sigma})
	}
	return out
}

// Layout returns the channel slots of the flattened yield vector.
func (m *Model) Layout() []ChannelLayout {
	out := make([]ChannelLayout, len(m.layout))
	copy(out, m.layout)
	return out
}

// ExpectedYields evaluates the predicted bin counts at theta, flattened over
// channels in declaration order. The method is pure: it never mutates the
// model or theta.
func (m *Model) ExpectedYields(theta []float64) []float64 {
	out := make([]float64, 0, m.total)
	for ci := range m.channels {
		ch := &m.channels[ci]
		bins := make([]float64, ch.nbins)
		for si := range ch.samples {
			s := &ch.samples[si]
			y := make([]float64, ch.nbins)
			copy(y, s.nominal)

			// Additive shape variations first, multiplicative factors after.
			for _, mod := range s.mods {
				if mod.kind == workspace.ModifierHistoSys {
					applyHistoSys(y, s.nominal, mod, theta[mod.param])
				}
			}
			for _, mod := range s.mods {
				switch mod.kind {
				case workspace.ModifierNormFactor, workspace.ModifierNormSys:
					factor := theta[mod.param]
					for b := range y {
						y[b] *= factor
					}
				case workspace.ModifierStatError:
					for b := range y {
						y[b] *= theta[mod.binParams[b]]
					}
				}
			}

			for b := range y {
				bins[b] += y[b]
			}
		}
		out = append(out, bins...)
	}
	return out
}

// applyHistoSys interpolates linearly between the nominal and the up/down
// templates: alpha=+1 reproduces hiData, alpha=-1 reproduces loData.
func applyHistoSys(y, nominal []float64, mod modifierTerm, alpha float64) {
	for b := range y {
		if alpha >= 0 {
			y[b] += alpha * (mod.hiData[b] - nominal[b])
		} else {
			y[b] += alpha * (nominal[b] - mod.loData[b])
		}
	}
}
