package pulls

import (
	"fmt"

	"histfit/domain/model"
	"histfit/internal/fitter"

	"github.com/montanaflynn/stats"
)

// Pull is the standard post-fit diagnostic for one nuisance parameter:
// (fitted - initial) / uncertainty.
type Pull struct {
	Name        string  `json:"name"`
	Fitted      float64 `json:"fitted"`
	Init        float64 `json:"init"`
	Uncertainty float64 `json:"uncertainty"`
	Pull        float64 `json:"pull"`
}

// Summary aggregates a pull distribution.
type Summary struct {
	Count      int     `json:"count"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"std_dev"`
	MaxAbsPull float64 `json:"max_abs_pull"`
}

// Compute derives pulls for every free nuisance parameter of a fit. The POI
// and fixed parameters are excluded; parameters without uncertainties report
// a zero pull. The fit result must carry uncertainties.
func Compute(m *model.Model, res *fitter.Result) ([]Pull, error) {
	if res.Uncertainties == nil {
		return nil, fmt.Errorf("fit result carries no uncertainties, refit with uncertainties enabled")
	}

	params := m.Parameters()
	var out []Pull
	for i, p := range params {
		if p.IsPOI || p.Fixed {
			continue
		}
		pull := Pull{
			Name:        p.Name.String(),
			Fitted:      res.Params[i],
			Init:        p.Init,
			Uncertainty: res.Uncertainties[i],
		}
		if pull.Uncertainty > 0 {
			pull.Pull = (pull.Fitted - pull.Init) / pull.Uncertainty
		}
		out = append(out, pull)
	}
	return out, nil
}

// Summarize computes distribution statistics over a set of pulls.
func Summarize(ps []Pull) (*Summary, error) {
	if len(ps) == 0 {
		return &Summary{}, nil
	}

	values := make([]float64, len(ps))
	maxAbs := 0.0
	for i, p := range ps {
		values[i] = p.Pull
		abs := p.Pull
		if abs < 0 {
			abs = -abs
		}
		if abs > maxAbs {
			maxAbs = abs
		}
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(values)
	if err != nil {
		return nil, err
	}
	stdDev, err := stats.StandardDeviation(values)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Count:      len(ps),
		Mean:       mean,
		Median:     median,
		StdDev:     stdDev,
		MaxAbsPull: maxAbs,
	}, nil
}
