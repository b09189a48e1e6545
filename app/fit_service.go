package app

import (
	"context"
	"time"

	"histfit/domain/core"
	"histfit/domain/model"
	"histfit/domain/results"
	"histfit/domain/workspace"
	"histfit/internal/errors"
	"histfit/internal/fitter"
	"histfit/internal/pulls"
	"histfit/ports"
)

// FitService runs maximum-likelihood fits against declarative workspaces and
// persists the outcome.
type FitService struct {
	fitter *fitter.Fitter
	store  ports.ResultStorePort
}

// FitRequest defines the inputs for one fit.
type FitRequest struct {
	Workspace   *workspace.Workspace
	Measurement string // empty selects the first measurement
	// ComputePulls adds nuisance-parameter pull diagnostics to the record.
	ComputePulls bool
	FitID        core.FitID // optional, will be generated if empty
}

// FitResponse contains the persisted fit record.
type FitResponse struct {
	Record *results.FitRecord `json:"record"`
}

// NewFitService creates a fit service.
func NewFitService(f *fitter.Fitter, store ports.ResultStorePort) *FitService {
	return &FitService{fitter: f, store: store}
}

// RunFit compiles the workspace, runs the unconditional fit with
// uncertainties, and stores the result. Validation failures and fit failures
// keep their core error identity through the wrap.
func (s *FitService) RunFit(ctx context.Context, req FitRequest) (*FitResponse, error) {
	startTime := time.Now()

	if req.Workspace == nil {
		return nil, errors.InvalidInput("fit request has no workspace")
	}

	m, err := model.Build(req.Workspace, req.Measurement)
	if err != nil {
		return nil, errors.Wrap(err, "model build failed")
	}

	data, err := req.Workspace.ObservedData()
	if err != nil {
		return nil, errors.Wrap(err, "workspace observations incomplete")
	}

	res, err := s.fitter.Fit(ctx, fitter.Request{
		Model:         m,
		Data:          data,
		Uncertainties: true,
	})
	if err != nil {
		if core.IsFitError(err) {
			return nil, errors.ConvergenceFailure(err)
		}
		return nil, errors.Wrap(err, "fit failed")
	}

	fitID := req.FitID
	if fitID == "" {
		fitID = core.FitID(core.NewID())
	}

	record, err := buildFitRecord(fitID, req.Workspace, m, res, req.ComputePulls)
	if err != nil {
		return nil, err
	}
	record.RuntimeMs = time.Since(startTime).Milliseconds()

	if s.store != nil {
		if err := s.store.StoreFit(ctx, record); err != nil {
			return nil, errors.Wrap(err, "failed to store fit record")
		}
	}

	return &FitResponse{Record: record}, nil
}

// buildFitRecord assembles the persisted record from the raw fit output.
func buildFitRecord(id core.FitID, ws *workspace.Workspace, m *model.Model, res *fitter.Result, withPulls bool) (*results.FitRecord, error) {
	wsHash, err := ws.Fingerprint()
	if err != nil {
		return nil, errors.Wrap(err, "failed to fingerprint workspace")
	}

	params := m.Parameters()
	estimates := make([]results.ParamEstimate, len(params))
	for i, p := range params {
		est := results.ParamEstimate{
			Name:  p.Name.String(),
			Value: res.Params[i],
			Fixed: p.Fixed,
			IsPOI: p.IsPOI,
		}
		if res.Uncertainties != nil {
			est.Uncertainty = res.Uncertainties[i]
		}
		estimates[i] = est
	}

	record := &results.FitRecord{
		ID:            id,
		WorkspaceHash: wsHash,
		ModelHash:     m.Hash(),
		POI:           params[m.POIIndex()].Name.String(),
		Parameters:    estimates,
		LogLikelihood: res.LogLikelihood,
		TwoNLL:        res.TwoNLL,
		CreatedAt:     core.Now(),
	}

	if withPulls {
		ps, err := pulls.Compute(m, res)
		if err != nil {
			return nil, errors.Wrap(err, "failed to compute pulls")
		}
		for _, p := range ps {
			record.Pulls = append(record.Pulls, results.PullRecord{Name: p.Name, Pull: p.Pull})
		}
	}

	return record, nil
}
