// Package blob is the stable entry point to artifact storage. Call sites
// depend on the Store interface here; only this package wraps the
// backend implementations.
package blob

import (
	"context"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/blob/core"
	fsstore "github.com/GeoscienceAustralia/agdc-statistics/internal/infra/blob/fs"
	memorystore "github.com/GeoscienceAustralia/agdc-statistics/internal/infra/blob/memory"
	s3store "github.com/GeoscienceAustralia/agdc-statistics/internal/infra/blob/s3"
)

type (
	// Driver identifies an artifact storage backend.
	Driver = core.Driver
	// PutOptions configures an artifact write.
	PutOptions = core.PutOptions
	// Info describes stored artifact metadata.
	Info = core.Info
	// Store is the interface artifact backends implement.
	Store = core.Store
)

const (
	// DriverFilesystem is the local directory backend.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible backend.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-process test backend.
	DriverMemory = core.DriverMemory
)

// Sentinel errors shared by every backend.
var (
	ErrAlreadyExists = core.ErrAlreadyExists
	ErrNotFound      = core.ErrNotFound
	ErrUnsupported   = core.ErrUnsupported
)

// NewFilesystem constructs a filesystem-backed Store rooted at path.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// NewMemory returns an in-memory Store for tests.
func NewMemory() Store { return memorystore.New() }

// S3Config holds explicit S3 construction parameters.
type S3Config = s3store.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3store.New(ctx, cfg) }
