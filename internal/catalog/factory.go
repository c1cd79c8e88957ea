package catalog

import (
	"context"
	"fmt"
	"os"
)

// Driver identifies a catalog backend.
type Driver string

const (
	// DriverMemory is the in-process catalog used by tests and dry runs.
	DriverMemory Driver = "memory"
	// DriverSQLite is the local single-file catalog.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is the shared multi-user catalog.
	DriverPostgres Driver = "postgres"
)

// Open selects a Catalog implementation using environment variables.
//
//	AGDC_STATS_CATALOG_DRIVER: memory|sqlite|postgres (default sqlite)
//	AGDC_STATS_CATALOG_PATH:   sqlite file path when driver=sqlite
//	AGDC_STATS_CATALOG_DSN:    connection string when driver=postgres
func Open(ctx context.Context) (Catalog, error) {
	driver := os.Getenv("AGDC_STATS_CATALOG_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(os.Getenv("AGDC_STATS_CATALOG_PATH"))
	case DriverPostgres:
		return NewPostgres(ctx, os.Getenv("AGDC_STATS_CATALOG_DSN"))
	default:
		return nil, fmt.Errorf("unknown catalog driver %s", driver)
	}
}
