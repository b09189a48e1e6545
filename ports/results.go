package ports

import (
	"context"

	"histfit/domain/core"
	"histfit/domain/results"
)

// ResultWriterPort provides append-only write access to inference results
type ResultWriterPort interface {
	StoreFit(ctx context.Context, result *results.FitRecord) error
	StoreScan(ctx context.Context, result *results.ScanRecord) error
}

// ResultReaderPort provides read-only access to stored inference results
type ResultReaderPort interface {
	GetFit(ctx context.Context, id core.FitID) (*results.FitRecord, error)
	GetScan(ctx context.Context, id core.ScanID) (*results.ScanRecord, error)
	ListFits(ctx context.Context, limit, offset int) ([]*results.FitRecord, error)
	ListScans(ctx context.Context, limit, offset int) ([]*results.ScanRecord, error)
}

// ResultStorePort combines read and write access
type ResultStorePort interface {
	ResultWriterPort
	ResultReaderPort
}
