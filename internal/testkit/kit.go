package testkit

import (
	"histfit/domain/core"
	"histfit/domain/workspace"
)

// Canned workspaces shared by the package tests. All builders return fresh
// values so tests can mutate them freely.

// CountingWorkspace builds a single-channel counting experiment: a fixed
// background template, a signal template scaled by the free normalization
// factor "mu", and the given observed counts.
func CountingWorkspace(observed, background, signal []float64) *workspace.Workspace {
	return &workspace.Workspace{
		Channels: []workspace.Channel{
			{
				Name: "SR",
				Samples: []workspace.Sample{
					{
						Name: "signal",
						Data: append([]float64(nil), signal...),
						Modifiers: []workspace.Modifier{
							{Name: "mu", Type: workspace.ModifierNormFactor},
						},
					},
					{
						Name: "background",
						Data: append([]float64(nil), background...),
					},
				},
			},
		},
		Observations: []workspace.Observation{
			{Name: "SR", Data: append([]float64(nil), observed...)},
		},
		Measurements: []workspace.Measurement{
			{
				Name:   "measurement",
				Config: workspace.MeasurementConfig{POI: "mu"},
			},
		},
		Version: workspace.WireVersion,
	}
}

// SimpleWorkspace is the canonical 120 = 100 + 1.0*20 counting setup: the
// maximum-likelihood estimate of mu is exactly one.
func SimpleWorkspace() *workspace.Workspace {
	return CountingWorkspace([]float64{120}, []float64{100}, []float64{20})
}

// SystematicsWorkspace extends the counting setup with one modifier of every
// constrained kind: a normsys on the background normalization, a histosys
// shape variation on the signal, and per-bin staterror on the background.
func SystematicsWorkspace() *workspace.Workspace {
	ws := CountingWorkspace([]float64{120, 60}, []float64{100, 50}, []float64{20, 10})

	sig := &ws.Channels[0].Samples[0]
	sig.Modifiers = append(sig.Modifiers, workspace.Modifier{
		Name:   "shape_sys",
		Type:   workspace.ModifierHistoSys,
		HiData: []float64{22, 11},
		LoData: []float64{18, 9},
	})

	bkg := &ws.Channels[0].Samples[1]
	bkg.Modifiers = append(bkg.Modifiers,
		workspace.Modifier{
			Name: "bkg_norm",
			Type: workspace.ModifierNormSys,
			Hi:   1.1,
			Lo:   0.9,
		},
		workspace.Modifier{
			Name:          "bkg_stat",
			Type:          workspace.ModifierStatError,
			Uncertainties: []float64{0.05, 0.08},
		},
	)

	return ws
}

// TwoChannelWorkspace builds a signal region plus control region sharing the
// POI and a background normalization systematic.
func TwoChannelWorkspace() *workspace.Workspace {
	ws := CountingWorkspace([]float64{120}, []float64{100}, []float64{20})

	ws.Channels = append(ws.Channels, workspace.Channel{
		Name: "CR",
		Samples: []workspace.Sample{
			{
				Name: "background",
				Data: []float64{200},
				Modifiers: []workspace.Modifier{
					{Name: "bkg_norm", Type: workspace.ModifierNormSys, Hi: 1.05, Lo: 0.95},
				},
			},
		},
	})
	ws.Channels[0].Samples[1].Modifiers = append(ws.Channels[0].Samples[1].Modifiers,
		workspace.Modifier{Name: "bkg_norm", Type: workspace.ModifierNormSys, Hi: 1.05, Lo: 0.95})

	ws.Observations = append(ws.Observations, workspace.Observation{Name: "CR", Data: []float64{200}})
	return ws
}

// POIName returns the POI of the canned measurements.
func POIName() core.ParameterName { return "mu" }
