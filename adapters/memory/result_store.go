package memory

import (
	"context"
	"sync"

	"histfit/domain/core"
	"histfit/domain/results"
	"histfit/ports"
)

// ResultStore is an in-memory ResultStorePort for tests and for running
// without a configured database.
type ResultStore struct {
	mu        sync.RWMutex
	fits      map[core.FitID]*results.FitRecord
	scans     map[core.ScanID]*results.ScanRecord
	fitOrder  []core.FitID
	scanOrder []core.ScanID
}

// NewResultStore creates an empty in-memory store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		fits:  make(map[core.FitID]*results.FitRecord),
		scans: make(map[core.ScanID]*results.ScanRecord),
	}
}

var _ ports.ResultStorePort = (*ResultStore)(nil)

// StoreFit records a fit result.
func (s *ResultStore) StoreFit(_ context.Context, record *results.FitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.fits[record.ID]; !exists {
		s.fitOrder = append(s.fitOrder, record.ID)
	}
	cp := *record
	s.fits[record.ID] = &cp
	return nil
}

// StoreScan records a scan result.
func (s *ResultStore) StoreScan(_ context.Context, record *results.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scans[record.ID]; !exists {
		s.scanOrder = append(s.scanOrder, record.ID)
	}
	cp := *record
	s.scans[record.ID] = &cp
	return nil
}

// GetFit returns a stored fit record.
func (s *ResultStore) GetFit(_ context.Context, id core.FitID) (*results.FitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.fits[id]
	if !ok {
		return nil, core.NewNotFoundError("fit result", id.String())
	}
	cp := *record
	return &cp, nil
}

// GetScan returns a stored scan record.
func (s *ResultStore) GetScan(_ context.Context, id core.ScanID) (*results.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.scans[id]
	if !ok {
		return nil, core.NewNotFoundError("scan result", id.String())
	}
	cp := *record
	return &cp, nil
}

// ListFits returns stored fits newest-first.
func (s *ResultStore) ListFits(_ context.Context, limit, offset int) ([]*results.FitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*results.FitRecord, 0)
	for i := len(s.fitOrder) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *s.fits[s.fitOrder[i]]
		out = append(out, &cp)
	}
	return out, nil
}

// ListScans returns stored scans newest-first.
func (s *ResultStore) ListScans(_ context.Context, limit, offset int) ([]*results.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*results.ScanRecord, 0)
	for i := len(s.scanOrder) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *s.scans[s.scanOrder[i]]
		out = append(out, &cp)
	}
	return out, nil
}
