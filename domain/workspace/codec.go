package workspace

import (
	"encoding/json"
	"fmt"

	"histfit/domain/core"
)

// WireVersion is the serialized workspace format version this package writes.
const WireVersion = "1.0.0"

// The wire format is the boundary contract with external workspace builders:
// top-level keys channels/observations/measurements/version, with a
// polymorphic "data" payload per modifier type:
//
//	normfactor  -> null
//	normsys     -> {"hi": 1.1, "lo": 0.9}
//	histosys    -> {"hi_data": [...], "lo_data": [...]}
//	staterror   -> [0.05, 0.1, ...]

type wireNormSys struct {
	Hi float64 `json:"hi"`
	Lo float64 `json:"lo"`
}

type wireHistoSys struct {
	HiData []float64 `json:"hi_data"`
	LoData []float64 `json:"lo_data"`
}

type wireModifier struct {
	Name string          `json:"name"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes the modifier with its type-specific data payload.
func (m Modifier) MarshalJSON() ([]byte, error) {
	w := wireModifier{Name: m.Name.String(), Type: string(m.Type)}

	var err error
	switch m.Type {
	case ModifierNormFactor:
		w.Data = json.RawMessage("null")
	case ModifierNormSys:
		w.Data, err = json.Marshal(wireNormSys{Hi: m.Hi, Lo: m.Lo})
	case ModifierHistoSys:
		w.Data, err = json.Marshal(wireHistoSys{HiData: m.HiData, LoData: m.LoData})
	case ModifierStatError:
		w.Data, err = json.Marshal(m.Uncertainties)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownModifier, m.Type)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the polymorphic data payload based on the type tag.
func (m *Modifier) UnmarshalJSON(raw []byte) error {
	var w wireModifier
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}

	m.Name = core.ParameterName(w.Name)
	m.Type = ModifierType(w.Type)

	switch m.Type {
	case ModifierNormFactor:
		return nil
	case ModifierNormSys:
		var ns wireNormSys
		if err := json.Unmarshal(w.Data, &ns); err != nil {
			return fmt.Errorf("normsys %s: %w", w.Name, err)
		}
		m.Hi, m.Lo = ns.Hi, ns.Lo
		return nil
	case ModifierHistoSys:
		var hs wireHistoSys
		if err := json.Unmarshal(w.Data, &hs); err != nil {
			return fmt.Errorf("histosys %s: %w", w.Name, err)
		}
		m.HiData, m.LoData = hs.HiData, hs.LoData
		return nil
	case ModifierStatError:
		if err := json.Unmarshal(w.Data, &m.Uncertainties); err != nil {
			return fmt.Errorf("staterror %s: %w", w.Name, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q on modifier %s", core.ErrUnknownModifier, m.Type, w.Name)
	}
}

// MarshalWire serializes the workspace to the external JSON format.
func (ws *Workspace) MarshalWire() ([]byte, error) {
	out := *ws
	if out.Version == "" {
		out.Version = WireVersion
	}
	return json.MarshalIndent(&out, "", "  ")
}

// ParseWire reconstructs a workspace from the external JSON format and
// validates it before returning.
func ParseWire(raw []byte) (*Workspace, error) {
	var ws Workspace
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("failed to parse workspace: %w", err)
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return &ws, nil
}
