package workspace

import (
	"fmt"

	"histfit/domain/core"
)

// Validate checks the structural invariants of the workspace:
//   - at least one channel, each with at least one sample
//   - every sample (and the observation) in a channel has the same bin count
//   - histosys/staterror payloads match the channel bin count
//   - every observation references a declared channel
//   - modifier types come from the closed variant set
//
// Validation never coerces: the first violation is returned as a
// core validation error.
func (ws *Workspace) Validate() error {
	if len(ws.Channels) == 0 {
		return core.ErrEmptyWorkspace
	}

	seen := make(map[core.ChannelName]bool, len(ws.Channels))
	for i := range ws.Channels {
		ch := &ws.Channels[i]
		if ch.Name == "" {
			return fmt.Errorf("channel %d has no name", i)
		}
		if seen[ch.Name] {
			return fmt.Errorf("duplicate channel name: %s", ch.Name)
		}
		seen[ch.Name] = true

		if err := validateChannel(ch); err != nil {
			return err
		}
	}

	for i := range ws.Observations {
		obs := &ws.Observations[i]
		if !seen[obs.Name] {
			return fmt.Errorf("%w: %s", core.ErrObservationOrphan, obs.Name)
		}
		ch, _ := ws.Channel(obs.Name)
		if len(obs.Data) != ch.BinCount() {
			return core.NewBinMismatchError(obs.Name.String(), ch.BinCount(), len(obs.Data))
		}
	}

	for i := range ws.Measurements {
		if ws.Measurements[i].Config.POI == "" {
			return fmt.Errorf("measurement %q declares no POI", ws.Measurements[i].Name)
		}
	}

	return nil
}

func validateChannel(ch *Channel) error {
	if len(ch.Samples) == 0 {
		return fmt.Errorf("channel %s has no samples", ch.Name)
	}

	nbins := len(ch.Samples[0].Data)
	if nbins == 0 {
		return fmt.Errorf("channel %s sample %s has no bins", ch.Name, ch.Samples[0].Name)
	}

	for i := range ch.Samples {
		s := &ch.Samples[i]
		if len(s.Data) != nbins {
			return core.NewBinMismatchError(ch.Name.String(), nbins, len(s.Data))
		}
		for j := range s.Modifiers {
			if err := validateModifier(&s.Modifiers[j], nbins); err != nil {
				return fmt.Errorf("channel %s sample %s: %w", ch.Name, s.Name, err)
			}
		}
	}
	return nil
}

func validateModifier(m *Modifier, nbins int) error {
	if m.Name == "" {
		return fmt.Errorf("modifier has no name")
	}
	switch m.Type {
	case ModifierNormFactor:
		return nil
	case ModifierNormSys:
		if m.Hi <= 0 || m.Lo <= 0 {
			return fmt.Errorf("normsys %s: hi/lo factors must be positive", m.Name)
		}
		return nil
	case ModifierHistoSys:
		if len(m.HiData) != nbins || len(m.LoData) != nbins {
			return core.NewBinMismatchError(m.Name.String(), nbins, len(m.HiData))
		}
		return nil
	case ModifierStatError:
		if len(m.Uncertainties) != nbins {
			return core.NewBinMismatchError(m.Name.String(), nbins, len(m.Uncertainties))
		}
		for _, u := range m.Uncertainties {
			if u < 0 {
				return fmt.Errorf("staterror %s: negative uncertainty", m.Name)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q on modifier %s", core.ErrUnknownModifier, m.Type, m.Name)
	}
}
