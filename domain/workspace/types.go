package workspace

import (
	"fmt"

	"histfit/domain/core"
)

// ============================================================================
// STABLE PRIMITIVES (Canonical, never change)
// ============================================================================

// ModifierType defines the closed set of modifier variants.
// The set is a tagged variant, not an open-ended string: anything outside
// these four values is rejected at validation time.
type ModifierType string

const (
	// ModifierNormFactor is an unconstrained multiplicative normalization factor.
	ModifierNormFactor ModifierType = "normfactor"
	// ModifierNormSys is a constrained multiplicative normalization systematic.
	ModifierNormSys ModifierType = "normsys"
	// ModifierHistoSys is a constrained additive shape systematic with
	// up/down template variations.
	ModifierHistoSys ModifierType = "histosys"
	// ModifierStatError is a per-bin statistical uncertainty on the template.
	ModifierStatError ModifierType = "staterror"
)

// Modifier attaches a named parameter to a sample. Exactly the fields for
// its Type are populated; the rest stay zero.
type Modifier struct {
	Name core.ParameterName `json:"name"`
	Type ModifierType       `json:"type"`

	// normsys: multiplicative up/down factors at +-1 sigma
	Hi float64 `json:"-"`
	Lo float64 `json:"-"`

	// histosys: absolute up/down template variations, one entry per bin
	HiData []float64 `json:"-"`
	LoData []float64 `json:"-"`

	// staterror: relative per-bin uncertainties on the nominal template
	Uncertainties []float64 `json:"-"`
}

// Sample is a named nominal bin-count template plus its modifiers.
type Sample struct {
	Name      core.SampleName `json:"name"`
	Data      []float64       `json:"data"`
	Modifiers []Modifier      `json:"modifiers"`
}

// Channel is an ordered, named region of samples.
type Channel struct {
	Name    core.ChannelName `json:"name"`
	Samples []Sample         `json:"samples"`
}

// Observation holds the observed bin counts for one channel.
type Observation struct {
	Name core.ChannelName `json:"name"`
	Data []float64        `json:"data"`
}

// ParameterConfig overrides the default init/bounds/fixed settings of one
// parameter inside a measurement.
type ParameterConfig struct {
	Name   core.ParameterName `json:"name"`
	Inits  []float64          `json:"inits,omitempty"`
	Bounds [][2]float64       `json:"bounds,omitempty"`
	Fixed  bool               `json:"fixed,omitempty"`
}

// MeasurementConfig names the POI and carries parameter overrides.
type MeasurementConfig struct {
	POI        core.ParameterName `json:"poi"`
	Parameters []ParameterConfig  `json:"parameters"`
}

// Measurement is a named measurement configuration.
type Measurement struct {
	Name   string            `json:"name"`
	Config MeasurementConfig `json:"config"`
}

// Workspace is the immutable declarative description of a binned statistical
// model: channels, samples, modifiers, observed data, and measurements.
// Treat a constructed Workspace as read-only.
type Workspace struct {
	Channels     []Channel     `json:"channels"`
	Observations []Observation `json:"observations"`
	Measurements []Measurement `json:"measurements"`
	Version      string        `json:"version"`
}

// ============================================================================
// ACCESSORS
// ============================================================================

// Channel returns the channel with the given name.
func (ws *Workspace) Channel(name core.ChannelName) (*Channel, error) {
	for i := range ws.Channels {
		if ws.Channels[i].Name == name {
			return &ws.Channels[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrChannelNotFound, name)
}

// Observation returns the observation for the given channel name.
func (ws *Workspace) Observation(name core.ChannelName) (*Observation, error) {
	for i := range ws.Observations {
		if ws.Observations[i].Name == name {
			return &ws.Observations[i], nil
		}
	}
	return nil, core.NewNotFoundError("observation", name.String())
}

// Measurement returns the named measurement, or the first one when name is
// empty (single-measurement workspaces are the common case).
func (ws *Workspace) Measurement(name string) (*Measurement, error) {
	if name == "" && len(ws.Measurements) > 0 {
		return &ws.Measurements[0], nil
	}
	for i := range ws.Measurements {
		if ws.Measurements[i].Name == name {
			return &ws.Measurements[i], nil
		}
	}
	return nil, core.NewNotFoundError("measurement", name)
}

// BinCount returns the number of bins in a channel, taken from its first
// sample. Validate guarantees all samples and the observation agree.
func (c *Channel) BinCount() int {
	if len(c.Samples) == 0 {
		return 0
	}
	return len(c.Samples[0].Data)
}

// ObservedData flattens the per-channel observations into a single vector
// ordered by the channel declaration order.
func (ws *Workspace) ObservedData() ([]float64, error) {
	var out []float64
	for i := range ws.Channels {
		obs, err := ws.Observation(ws.Channels[i].Name)
		if err != nil {
			return nil, err
		}
		out = append(out, obs.Data...)
	}
	return out, nil
}

// Fingerprint computes a deterministic hash over the serialized workspace.
func (ws *Workspace) Fingerprint() (core.WorkspaceHash, error) {
	raw, err := ws.MarshalWire()
	if err != nil {
		return "", err
	}
	return core.NewWorkspaceHash(raw), nil
}
