package ui

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"histfit/app"
	"histfit/domain/core"
	"histfit/domain/model"
	"histfit/domain/workspace"
	"histfit/internal/errors"

	"github.com/go-chi/chi/v5"
)

// fitPayload is the request body of POST /api/fit and /api/validate.
type fitPayload struct {
	Workspace    json.RawMessage `json:"workspace"`
	Measurement  string          `json:"measurement,omitempty"`
	ComputePulls bool            `json:"compute_pulls,omitempty"`
}

// scanPayload is the request body of POST /api/scan.
type scanPayload struct {
	Workspace   json.RawMessage `json:"workspace"`
	Measurement string          `json:"measurement,omitempty"`
	Parameter   string          `json:"parameter,omitempty"`
	Values      []float64       `json:"values,omitempty"`
	Lo          float64         `json:"lo,omitempty"`
	Hi          float64         `json:"hi,omitempty"`
	Steps       int             `json:"steps,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var payload fitPayload
	if !s.decode(w, r, &payload) {
		return
	}

	ws, err := workspace.ParseWire(payload.Workspace)
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := model.Build(ws, payload.Measurement)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":      true,
		"parameters": m.Parameters(),
		"poi":        m.ParameterNames()[m.POIIndex()],
		"model_hash": m.Hash(),
	})
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	var payload fitPayload
	if !s.decode(w, r, &payload) {
		return
	}

	ws, err := workspace.ParseWire(payload.Workspace)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.fits.RunFit(r.Context(), app.FitRequest{
		Workspace:    ws,
		Measurement:  payload.Measurement,
		ComputePulls: payload.ComputePulls,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var payload scanPayload
	if !s.decode(w, r, &payload) {
		return
	}

	ws, err := workspace.ParseWire(payload.Workspace)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.scans.RunScan(r.Context(), app.ScanRequest{
		Workspace:   ws,
		Measurement: payload.Measurement,
		Parameter:   core.ParameterName(payload.Parameter),
		Values:      payload.Values,
		Lo:          payload.Lo,
		Hi:          payload.Hi,
		Steps:       payload.Steps,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFit(w http.ResponseWriter, r *http.Request) {
	record, err := s.reader.GetFit(r.Context(), core.FitID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	record, err := s.reader.GetScan(r.Context(), core.ScanID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListFits(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	records, err := s.reader.ListFits(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	records, err := s.reader.ListScans(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleFitReport(w http.ResponseWriter, r *http.Request) {
	record, err := s.reader.GetFit(r.Context(), core.FitID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTML(w, s.reports.RenderHTML(s.reports.FitMarkdown(record)))
}

func (s *Server) handleScanReport(w http.ResponseWriter, r *http.Request) {
	record, err := s.reader.GetScan(r.Context(), core.ScanID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTML(w, s.reports.RenderHTML(s.reports.ScanMarkdown(record)))
}

func (s *Server) handleFitExport(w http.ResponseWriter, r *http.Request) {
	record, err := s.reader.GetFit(r.Context(), core.FitID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeWorkbook(w, "fit-"+record.ID.String()+".xlsx", func(out io.Writer) error {
		return s.exporter.WriteFit(record, out)
	})
}

func (s *Server) handleScanExport(w http.ResponseWriter, r *http.Request) {
	record, err := s.reader.GetScan(r.Context(), core.ScanID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeWorkbook(w, "scan-"+record.ID.String()+".xlsx", func(out io.Writer) error {
		return s.exporter.WriteScan(record, out)
	})
}

// decode parses the JSON body, replying 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error(), Code: errors.CodeInvalidInput})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response: %v", err)
	}
}

func (s *Server) writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) writeWorkbook(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := write(w); err != nil {
		s.log.Error("workbook export failed: %v", err)
	}
}

// writeError maps domain error classes to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsValidationError(err):
		status = http.StatusUnprocessableEntity
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case core.IsFitError(err):
		status = http.StatusConflict
	case errors.GetCode(err) == errors.CodeInvalidInput:
		status = http.StatusBadRequest
	case errors.GetCode(err) == errors.CodeConvergence:
		status = http.StatusConflict
	}
	s.log.Warn("request failed (%d): %v", status, err)
	s.writeJSON(w, status, errorBody{Error: err.Error(), Code: errors.GetCode(err)})
}

func listParams(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
