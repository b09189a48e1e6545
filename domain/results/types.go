package results

import (
	"histfit/domain/core"
)

// ParamEstimate is one fitted parameter with its uncertainty.
type ParamEstimate struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Uncertainty float64 `json:"uncertainty"`
	Fixed       bool    `json:"fixed"`
	IsPOI       bool    `json:"is_poi"`
}

// PullRecord is a persisted nuisance-parameter pull.
type PullRecord struct {
	Name string  `json:"name"`
	Pull float64 `json:"pull"`
}

// FitRecord is the persisted outcome of a maximum-likelihood fit.
type FitRecord struct {
	ID            core.FitID         `json:"id"`
	WorkspaceHash core.WorkspaceHash `json:"workspace_hash"`
	ModelHash     core.ModelHash     `json:"model_hash"`
	POI           string             `json:"poi"`
	Parameters    []ParamEstimate    `json:"parameters"`
	LogLikelihood float64            `json:"log_likelihood"`
	TwoNLL        float64            `json:"two_nll"`
	Pulls         []PullRecord       `json:"pulls,omitempty"`
	RuntimeMs     int64              `json:"runtime_ms"`
	CreatedAt     core.Timestamp     `json:"created_at"`
}

// ScanPoint is one persisted profile-likelihood point.
type ScanPoint struct {
	Value    float64 `json:"value"`
	DeltaNLL float64 `json:"delta_nll"`
}

// ScanRecord is the persisted outcome of a profile-likelihood scan.
type ScanRecord struct {
	ID            core.ScanID        `json:"id"`
	WorkspaceHash core.WorkspaceHash `json:"workspace_hash"`
	ModelHash     core.ModelHash     `json:"model_hash"`
	Parameter     string             `json:"parameter"`
	Points        []ScanPoint        `json:"points"`
	BestFitTwoNLL float64            `json:"best_fit_two_nll"`
	BestFitPOI    float64            `json:"best_fit_poi"`
	RuntimeMs     int64              `json:"runtime_ms"`
	CreatedAt     core.Timestamp     `json:"created_at"`
}

// POIEstimate returns the parameter-of-interest estimate of a fit record.
func (r *FitRecord) POIEstimate() (ParamEstimate, bool) {
	for _, p := range r.Parameters {
		if p.IsPOI {
			return p, true
		}
	}
	return ParamEstimate{}, false
}
