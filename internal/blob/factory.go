package blob

import (
	"context"
	"fmt"
	"os"

	s3store "github.com/GeoscienceAustralia/agdc-statistics/internal/infra/blob/s3"
)

// Open selects an artifact Store from environment variables.
//
//	AGDC_STATS_BLOB_DRIVER:  fs|s3|memory (default fs)
//	AGDC_STATS_BLOB_FS_ROOT: directory root when driver=fs (default ./artifacts)
//	(S3 variables documented in the s3 backend)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("AGDC_STATS_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("AGDC_STATS_BLOB_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown artifact store driver %q", driver)
	}
}
