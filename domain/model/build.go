package model

import (
	"fmt"
	"math"
	"strings"

	"histfit/domain/core"
	"histfit/domain/workspace"
)

// Build compiles a workspace into an executable Model for the named
// measurement (empty name selects the first measurement). The workspace is
// validated first; the POI must resolve to a declared normalization factor.
func Build(ws *workspace.Workspace, measurementName string) (*Model, error) {
	if err := ws.Validate(); err != nil {
		return nil, err
	}

	meas, err := ws.Measurement(measurementName)
	if err != nil {
		return nil, err
	}

	reg := newParamRegistry()
	for ci := range ws.Channels {
		ch := &ws.Channels[ci]
		for si := range ch.Samples {
			for mi := range ch.Samples[si].Modifiers {
				if err := reg.register(&ch.Samples[si].Modifiers[mi], ch.BinCount()); err != nil {
					return nil, err
				}
			}
		}
	}

	poiType, ok := reg.types[meas.Config.POI]
	if !ok || poiType != workspace.ModifierNormFactor {
		return nil, core.NewUnknownPOIError(meas.Config.POI.String())
	}

	params, index := reg.ordered(meas.Config.POI)
	if err := applyOverrides(params, index, meas.Config.Parameters); err != nil {
		return nil, err
	}

	m := &Model{
		params:   params,
		index:    index,
		poiIndex: index[meas.Config.POI],
	}
	if err := compileChannels(m, ws); err != nil {
		return nil, err
	}

	names := m.ParameterNames()
	m.hash = core.ComputeParameterSetHash(names, m.Init())
	return m, nil
}

// paramRegistry collects parameters in first-declaration order and rejects
// redeclaration of a name under a different modifier type.
type paramRegistry struct {
	order []core.ParameterName
	types map[core.ParameterName]workspace.ModifierType
	specs map[core.ParameterName]Parameter
}

func newParamRegistry() *paramRegistry {
	return &paramRegistry{
		types: make(map[core.ParameterName]workspace.ModifierType),
		specs: make(map[core.ParameterName]Parameter),
	}
}

func (r *paramRegistry) register(mod *workspace.Modifier, nbins int) error {
	if existing, ok := r.types[mod.Name]; ok {
		if existing != mod.Type {
			return fmt.Errorf("parameter %s declared as both %s and %s", mod.Name, existing, mod.Type)
		}
		return nil
	}
	r.types[mod.Name] = mod.Type

	switch mod.Type {
	case workspace.ModifierNormFactor:
		r.add(Parameter{
			Name:       mod.Name,
			Init:       1,
			Bounds:     [2]float64{0, 10},
			Constraint: ConstraintNone,
		})
	case workspace.ModifierNormSys:
		// The parameter is the multiplicative factor itself, constrained by
		// a log-normal term centered at one with width from the hi/lo band.
		sigma := (math.Log(mod.Hi) - math.Log(mod.Lo)) / 2
		r.add(Parameter{
			Name:       mod.Name,
			Init:       1,
			Bounds:     [2]float64{1e-3, 10},
			Constraint: ConstraintLogNormal,
			Center:     1,
			Sigma:      sigma,
		})
	case workspace.ModifierHistoSys:
		r.add(Parameter{
			Name:       mod.Name,
			Init:       0,
			Bounds:     [2]float64{-5, 5},
			Constraint: ConstraintNormal,
			Center:     0,
			Sigma:      1,
		})
	case workspace.ModifierStatError:
		// One gamma parameter per bin, Gaussian-constrained around one with
		// the declared relative uncertainty. Zero-uncertainty bins stay
		// fixed at one.
		for b := 0; b < nbins; b++ {
			p := Parameter{
				Name:       binParamName(mod.Name, b),
				Init:       1,
				Bounds:     [2]float64{1e-10, 10},
				Constraint: ConstraintNormal,
				Center:     1,
				Sigma:      mod.Uncertainties[b],
			}
			if mod.Uncertainties[b] == 0 {
				p.Fixed = true
				p.Constraint = ConstraintNone
			}
			r.add(p)
		}
	default:
		return fmt.Errorf("%w: %q", core.ErrUnknownModifier, mod.Type)
	}
	return nil
}

func (r *paramRegistry) add(p Parameter) {
	r.order = append(r.order, p.Name)
	r.specs[p.Name] = p
}

// ordered returns the parameter vector with the POI first and the remaining
// parameters in first-declaration order, plus the name index.
func (r *paramRegistry) ordered(poi core.ParameterName) ([]Parameter, map[core.ParameterName]int) {
	params := make([]Parameter, 0, len(r.order))

	poiSpec := r.specs[poi]
	poiSpec.IsPOI = true
	params = append(params, poiSpec)

	for _, name := range r.order {
		if name == poi {
			continue
		}
		params = append(params, r.specs[name])
	}

	index := make(map[core.ParameterName]int, len(params))
	for i := range params {
		index[params[i].Name] = i
	}
	return params, index
}

// applyOverrides applies measurement-level init/bounds/fixed overrides.
// An override naming a staterror modifier (without the bin suffix) applies
// to every per-bin parameter it produced.
func applyOverrides(params []Parameter, index map[core.ParameterName]int, overrides []workspace.ParameterConfig) error {
	for _, o := range overrides {
		targets := resolveOverrideTargets(params, index, o.Name)
		if len(targets) == 0 {
			return core.NewNotFoundError("parameter", o.Name.String())
		}
		for _, i := range targets {
			if len(o.Inits) > 0 {
				params[i].Init = o.Inits[0]
			}
			if len(o.Bounds) > 0 {
				params[i].Bounds = o.Bounds[0]
			}
			if o.Fixed {
				params[i].Fixed = true
			}
		}
	}
	return nil
}

func resolveOverrideTargets(params []Parameter, index map[core.ParameterName]int, name core.ParameterName) []int {
	if i, ok := index[name]; ok {
		return []int{i}
	}
	prefix := name.String() + "["
	var out []int
	for i := range params {
		if strings.HasPrefix(params[i].Name.String(), prefix) {
			out = append(out, i)
		}
	}
	return out
}

// compileChannels resolves modifier parameter names to vector indices and
// freezes the per-channel yield expressions.
func compileChannels(m *Model, ws *workspace.Workspace) error {
	offset := 0
	for ci := range ws.Channels {
		ch := &ws.Channels[ci]
		nbins := ch.BinCount()
		term := channelTerm{name: ch.Name, nbins: nbins}

		for si := range ch.Samples {
			s := &ch.Samples[si]
			nominal := make([]float64, nbins)
			copy(nominal, s.Data)
			st := sampleTerm{name: s.Name, nominal: nominal}

			for mi := range s.Modifiers {
				mod := &s.Modifiers[mi]
				mt := modifierTerm{kind: mod.Type}
				switch mod.Type {
				case workspace.ModifierStatError:
					mt.binParams = make([]int, nbins)
					for b := 0; b < nbins; b++ {
						mt.binParams[b] = m.index[binParamName(mod.Name, b)]
					}
				case workspace.ModifierHistoSys:
					mt.param = m.index[mod.Name]
					mt.hiData = append([]float64(nil), mod.HiData...)
					mt.loData = append([]float64(nil), mod.LoData...)
				default:
					mt.param = m.index[mod.Name]
				}
				st.mods = append(st.mods, mt)
			}
			term.samples = append(term.samples, st)
		}

		m.channels = append(m.channels, term)
		m.layout = append(m.layout, ChannelLayout{Name: ch.Name, Bins: nbins, Offset: offset})
		offset += nbins
	}
	m.total = offset
	return nil
}

func binParamName(name core.ParameterName, bin int) core.ParameterName {
	return core.ParameterName(fmt.Sprintf("%s[%d]", name, bin))
}
