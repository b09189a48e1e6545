package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"histfit/domain/core"
	"histfit/domain/results"
	"histfit/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// resultRepository implements the ResultStorePort interface
type resultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) ports.ResultStorePort {
	return &resultRepository{db: db}
}

// Connect opens a postgres connection pool for the repository.
func Connect(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// Schema is the DDL for the result tables.
const Schema = `
CREATE TABLE IF NOT EXISTS fit_results (
	id             TEXT PRIMARY KEY,
	workspace_hash TEXT NOT NULL,
	model_hash     TEXT NOT NULL,
	poi            TEXT NOT NULL,
	two_nll        DOUBLE PRECISION NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scan_results (
	id             TEXT PRIMARY KEY,
	workspace_hash TEXT NOT NULL,
	model_hash     TEXT NOT NULL,
	parameter      TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);`

// Migrate creates the result tables when they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate result tables: %w", err)
	}
	return nil
}

// StoreFit inserts a fit record
func (r *resultRepository) StoreFit(ctx context.Context, record *results.FitRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal fit record: %w", err)
	}

	query := `INSERT INTO fit_results (
		id, workspace_hash, model_hash, poi, two_nll, payload, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7
	)`

	_, err = r.db.ExecContext(ctx, query,
		record.ID.String(), record.WorkspaceHash.String(), record.ModelHash.String(),
		record.POI, record.TwoNLL, payload, record.CreatedAt.Time(),
	)

	if err != nil {
		return fmt.Errorf("failed to store fit record: %w", err)
	}

	return nil
}

// StoreScan inserts a scan record
func (r *resultRepository) StoreScan(ctx context.Context, record *results.ScanRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal scan record: %w", err)
	}

	query := `INSERT INTO scan_results (
		id, workspace_hash, model_hash, parameter, payload, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6
	)`

	_, err = r.db.ExecContext(ctx, query,
		record.ID.String(), record.WorkspaceHash.String(), record.ModelHash.String(),
		record.Parameter, payload, record.CreatedAt.Time(),
	)

	if err != nil {
		return fmt.Errorf("failed to store scan record: %w", err)
	}

	return nil
}

// GetFit retrieves a fit record by its ID
func (r *resultRepository) GetFit(ctx context.Context, id core.FitID) (*results.FitRecord, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM fit_results WHERE id = $1`, id.String()).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("fit result", id.String())
		}
		return nil, fmt.Errorf("failed to get fit record: %w", err)
	}

	var record results.FitRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fit record: %w", err)
	}
	return &record, nil
}

// GetScan retrieves a scan record by its ID
func (r *resultRepository) GetScan(ctx context.Context, id core.ScanID) (*results.ScanRecord, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM scan_results WHERE id = $1`, id.String()).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("scan result", id.String())
		}
		return nil, fmt.Errorf("failed to get scan record: %w", err)
	}

	var record results.ScanRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan record: %w", err)
	}
	return &record, nil
}

// ListFits retrieves fit records ordered by creation time, newest first
func (r *resultRepository) ListFits(ctx context.Context, limit, offset int) ([]*results.FitRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payload FROM fit_results ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query fit records: %w", err)
	}
	defer rows.Close()

	records := make([]*results.FitRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan fit record: %w", err)
		}
		var record results.FitRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fit record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// ListScans retrieves scan records ordered by creation time, newest first
func (r *resultRepository) ListScans(ctx context.Context, limit, offset int) ([]*results.ScanRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payload FROM scan_results ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan records: %w", err)
	}
	defer rows.Close()

	records := make([]*results.ScanRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan scan record: %w", err)
		}
		var record results.ScanRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scan record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}
