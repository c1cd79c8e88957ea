package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// SQLite is a Catalog backed by a single local SQLite table. It serves
// standalone runs where no shared index is available.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Catalog = (*SQLite)(nil)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS datasets (
	id TEXT PRIMARY KEY,
	product TEXT NOT NULL,
	center_time TEXT NOT NULL,
	x_lo REAL NOT NULL, x_hi REAL NOT NULL,
	y_lo REAL NOT NULL, y_hi REAL NOT NULL,
	lon REAL NOT NULL DEFAULT 0,
	metadata BLOB
);
CREATE INDEX IF NOT EXISTS idx_datasets_product_time ON datasets (product, center_time)`

// NewSQLite opens (creating if needed) a SQLite-backed catalog at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "agdc-stats-catalog.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("create datasets table: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Index inserts dataset records, failing on duplicate identifiers.
func (s *SQLite) Index(ctx context.Context, datasets ...domain.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, ds := range datasets {
		meta, err := json.Marshal(ds.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", ds.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO datasets (id, product, center_time, x_lo, x_hi, y_lo, y_hi, lon, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ds.ID, ds.Product, ds.CenterTime.UTC().Format(time.RFC3339Nano),
			ds.Extent.X.Lo, ds.Extent.X.Hi, ds.Extent.Y.Lo, ds.Extent.Y.Hi,
			ds.Lon, meta)
		if err != nil {
			return fmt.Errorf("insert dataset %s: %w", ds.ID, err)
		}
	}
	return tx.Commit()
}

// FindDatasets searches the local index.
func (s *SQLite) FindDatasets(ctx context.Context, q Query) ([]domain.Dataset, error) {
	query := `SELECT id, product, center_time, x_lo, x_hi, y_lo, y_hi, lon, metadata
		FROM datasets WHERE product = ?`
	args := []any{q.Product}
	if !q.Time.IsZero() {
		query += ` AND center_time >= ? AND center_time < ?`
		args = append(args,
			q.Time.Start.UTC().Format(time.RFC3339Nano),
			q.Time.End.UTC().Format(time.RFC3339Nano))
	}
	if q.Extent != nil {
		query += ` AND x_hi > ? AND x_lo < ? AND y_hi > ? AND y_lo < ?`
		args = append(args, q.Extent.X.Lo, q.Extent.X.Hi, q.Extent.Y.Lo, q.Extent.Y.Hi)
	}
	query += ` ORDER BY center_time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanDatasets(rows, q.SourceFilter)
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// scanDatasets decodes dataset rows, applying the source filter in-process
// since metadata is stored as an opaque JSON blob.
func scanDatasets(rows *sql.Rows, sourceFilter string) ([]domain.Dataset, error) {
	var out []domain.Dataset
	for rows.Next() {
		var ds domain.Dataset
		var centerTime string
		var xLo, xHi, yLo, yHi float64
		var meta []byte
		if err := rows.Scan(&ds.ID, &ds.Product, &centerTime, &xLo, &xHi, &yLo, &yHi, &ds.Lon, &meta); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, centerTime)
		if err != nil {
			return nil, fmt.Errorf("parse center_time for %s: %w", ds.ID, err)
		}
		ds.CenterTime = t
		ds.Extent = rectFromBounds(xLo, xHi, yLo, yHi)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ds.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", ds.ID, err)
			}
		}
		if !matchesSourceFilter(ds, sourceFilter) {
			continue
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}
