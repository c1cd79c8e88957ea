// Package core defines the artifact store abstraction used to publish
// finalized task outputs to durable storage.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete artifact storage backend.
type Driver string

const (
	// DriverFilesystem keeps artifacts under a local directory root.
	DriverFilesystem Driver = "fs"
	// DriverS3 publishes artifacts to an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-process backend used in tests.
	DriverMemory Driver = "memory"
)

// PutOptions carries optional parameters for Put.
type PutOptions struct {
	ContentType string
	// Metadata is small flat key-value provenance attached to the
	// artifact (spatial id, time period, output product).
	Metadata map[string]string
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a thin S3-like abstraction over artifact storage. Put is
// create-only: artifacts are immutable once published, so a second Put to
// the same key fails with ErrAlreadyExists.
type Store interface {
	// Put stores a new artifact at key. Fails with ErrAlreadyExists when
	// the key is taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get retrieves the artifact contents and metadata.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns metadata only.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes an artifact. Returns (false, nil) if not found.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns artifacts under the key prefix, ascending by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns a time-limited GET URL, or ErrUnsupported.
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Driver identifies the backend.
	Driver() Driver
}

// ErrAlreadyExists reports a Put to an occupied key.
var ErrAlreadyExists = errors.New("artifact already exists")

// ErrNotFound reports a missing artifact.
var ErrNotFound = errors.New("artifact not found")

// ErrUnsupported is returned when an optional capability is unavailable.
var ErrUnsupported = errors.New("unsupported operation")
