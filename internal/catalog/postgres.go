package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

const (
	pgDriver = "pgx"
	// Default DSN keeps parity with Open defaults while allowing overrides via env.
	pgDefaultDSN = "postgres://localhost/agdc_stats?sslmode=disable"
)

const pgSchema = `CREATE TABLE IF NOT EXISTS agdc_datasets (
	id TEXT PRIMARY KEY,
	product TEXT NOT NULL,
	center_time TIMESTAMPTZ NOT NULL,
	x_lo DOUBLE PRECISION NOT NULL, x_hi DOUBLE PRECISION NOT NULL,
	y_lo DOUBLE PRECISION NOT NULL, y_hi DOUBLE PRECISION NOT NULL,
	lon DOUBLE PRECISION NOT NULL DEFAULT 0,
	metadata JSONB
);
CREATE INDEX IF NOT EXISTS idx_agdc_datasets_product_time ON agdc_datasets (product, center_time)`

// Postgres is a Catalog backed by a shared Postgres dataset table, for runs
// against a multi-user index.
type Postgres struct {
	db *sql.DB
}

var _ Catalog = (*Postgres)(nil)

// NewPostgres opens a Postgres-backed catalog using the provided DSN
// (falls back to a local default) and ensures the dataset table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = pgDefaultDSN
	}
	db, err := sql.Open(pgDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create datasets table: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Index inserts dataset records, failing on duplicate identifiers.
func (p *Postgres) Index(ctx context.Context, datasets ...domain.Dataset) error {
	tx, err := p.db.BeginTx(ctx, nil)
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
			`INSERT INTO agdc_datasets (id, product, center_time, x_lo, x_hi, y_lo, y_hi, lon, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ds.ID, ds.Product, ds.CenterTime.UTC(),
			ds.Extent.X.Lo, ds.Extent.X.Hi, ds.Extent.Y.Lo, ds.Extent.Y.Hi,
			ds.Lon, meta)
		if err != nil {
			return fmt.Errorf("insert dataset %s: %w", ds.ID, err)
		}
	}
	return tx.Commit()
}

// FindDatasets searches the shared index.
func (p *Postgres) FindDatasets(ctx context.Context, q Query) ([]domain.Dataset, error) {
	query := `SELECT id, product, center_time, x_lo, x_hi, y_lo, y_hi, lon, metadata
		FROM agdc_datasets WHERE product = $1`
	args := []any{q.Product}
	if !q.Time.IsZero() {
		query += fmt.Sprintf(` AND center_time >= $%d AND center_time < $%d`, len(args)+1, len(args)+2)
		args = append(args, q.Time.Start.UTC(), q.Time.End.UTC())
	}
	if q.Extent != nil {
		query += fmt.Sprintf(` AND x_hi > $%d AND x_lo < $%d AND y_hi > $%d AND y_lo < $%d`,
			len(args)+1, len(args)+2, len(args)+3, len(args)+4)
		args = append(args, q.Extent.X.Lo, q.Extent.X.Hi, q.Extent.Y.Lo, q.Extent.Y.Hi)
	}
	query += ` ORDER BY center_time, id`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanPgDatasets(rows, q.SourceFilter)
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

func scanPgDatasets(rows *sql.Rows, sourceFilter string) ([]domain.Dataset, error) {
	var out []domain.Dataset
	for rows.Next() {
		var ds domain.Dataset
		var centerTime time.Time
		var xLo, xHi, yLo, yHi float64
		var meta []byte
		if err := rows.Scan(&ds.ID, &ds.Product, &centerTime, &xLo, &xHi, &yLo, &yHi, &ds.Lon, &meta); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		ds.CenterTime = centerTime.UTC()
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
