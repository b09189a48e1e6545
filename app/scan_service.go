package app

import (
	"context"
	"time"

	"histfit/domain/core"
	"histfit/domain/model"
	"histfit/domain/results"
	"histfit/domain/workspace"
	"histfit/internal/errors"
	"histfit/internal/scan"
	"histfit/ports"
)

// ScanService runs profile-likelihood scans and persists the curves.
type ScanService struct {
	driver *scan.Driver
	store  ports.ResultStorePort
}

// ScanRequest defines one profile-likelihood scan. Either Values or the
// Lo/Hi/Steps grid must be given.
type ScanRequest struct {
	Workspace   *workspace.Workspace
	Measurement string
	// Parameter to scan; empty scans the POI.
	Parameter core.ParameterName
	Values    []float64
	Lo, Hi    float64
	Steps     int
	ScanID    core.ScanID // optional, will be generated if empty
}

// ScanResponse contains the persisted scan record.
type ScanResponse struct {
	Record *results.ScanRecord `json:"record"`
}

// NewScanService creates a scan service.
func NewScanService(driver *scan.Driver, store ports.ResultStorePort) *ScanService {
	return &ScanService{driver: driver, store: store}
}

// RunScan compiles the workspace, runs the profile scan, and stores the
// curve. Grid values outside the parameter bounds fail before any fit runs.
func (s *ScanService) RunScan(ctx context.Context, req ScanRequest) (*ScanResponse, error) {
	startTime := time.Now()

	if req.Workspace == nil {
		return nil, errors.InvalidInput("scan request has no workspace")
	}

	m, err := model.Build(req.Workspace, req.Measurement)
	if err != nil {
		return nil, errors.Wrap(err, "model build failed")
	}

	data, err := req.Workspace.ObservedData()
	if err != nil {
		return nil, errors.Wrap(err, "workspace observations incomplete")
	}

	target := req.Parameter
	if target == "" {
		target = m.Parameters()[m.POIIndex()].Name
	}

	values, err := scanGrid(req)
	if err != nil {
		return nil, err
	}

	curve, err := s.driver.ProfileScan(ctx, m, data, target, values)
	if err != nil {
		if core.IsFitError(err) {
			return nil, errors.ConvergenceFailure(err)
		}
		return nil, errors.Wrap(err, "profile scan failed")
	}

	scanID := req.ScanID
	if scanID == "" {
		scanID = core.ScanID(core.NewID())
	}

	wsHash, err := req.Workspace.Fingerprint()
	if err != nil {
		return nil, errors.Wrap(err, "failed to fingerprint workspace")
	}

	record := &results.ScanRecord{
		ID:            scanID,
		WorkspaceHash: wsHash,
		ModelHash:     m.Hash(),
		Parameter:     target.String(),
		BestFitTwoNLL: curve.BestFit.TwoNLL,
		BestFitPOI:    curve.BestFit.Params[m.POIIndex()],
		CreatedAt:     core.Now(),
	}
	for _, p := range curve.Points {
		record.Points = append(record.Points, results.ScanPoint{Value: p.Value, DeltaNLL: p.DeltaNLL})
	}
	record.RuntimeMs = time.Since(startTime).Milliseconds()

	if s.store != nil {
		if err := s.store.StoreScan(ctx, record); err != nil {
			return nil, errors.Wrap(err, "failed to store scan record")
		}
	}

	return &ScanResponse{Record: record}, nil
}

// scanGrid materializes the scan values, preferring an explicit list over
// the Lo/Hi/Steps specification.
func scanGrid(req ScanRequest) ([]float64, error) {
	if len(req.Values) > 0 {
		return append([]float64(nil), req.Values...), nil
	}
	if req.Steps < 2 {
		return nil, errors.InvalidInput("scan grid needs explicit values or at least two steps")
	}
	if req.Hi <= req.Lo {
		return nil, errors.InvalidInput("scan grid upper edge must exceed lower edge")
	}
	values := make([]float64, req.Steps)
	width := (req.Hi - req.Lo) / float64(req.Steps-1)
	for i := range values {
		values[i] = req.Lo + float64(i)*width
	}
	return values, nil
}
