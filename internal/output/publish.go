package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/blob"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Publisher uploads committed output files to an artifact store, keyed by
// their path relative to the output directory. Publication happens after
// commit, so a crash between the two leaves a complete local file that a
// re-run can publish.
type Publisher struct {
	store  blob.Store
	outDir string
	prefix string
	logger *slog.Logger
}

// NewPublisher builds a publisher for files under outDir. The optional
// prefix is prepended to every artifact key.
func NewPublisher(store blob.Store, outDir, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, outDir: outDir, prefix: prefix, logger: logger}
}

// Publish uploads the given committed paths, attaching the task's spatial
// id and time period as artifact metadata. An artifact already present is
// skipped: re-running a finished task is not an error.
func (p *Publisher) Publish(ctx context.Context, task *domain.StatsTask, paths []string) error {
	var errs []error
	for _, fp := range paths {
		if err := p.publishOne(ctx, task, fp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) publishOne(ctx context.Context, task *domain.StatsTask, filePath string) error {
	key, err := p.keyFor(filePath)
	if err != nil {
		return err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	defer f.Close()

	meta := map[string]string{
		"epoch_start": task.TimePeriod.Start.Format("2006-01-02"),
		"epoch_end":   task.TimePeriod.End.Format("2006-01-02"),
	}
	for k, v := range task.SpatialID {
		meta[k] = v
	}
	info, err := p.store.Put(ctx, key, f, blob.PutOptions{
		ContentType: contentTypeFor(filePath),
		Metadata:    meta,
	})
	if errors.Is(err, blob.ErrAlreadyExists) {
		p.logger.Warn("artifact already published, skipping", "key", key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.logger.Info("artifact published", "key", key, "size", info.Size)
	return nil
}

func (p *Publisher) keyFor(filePath string) (string, error) {
	rel, err := filepath.Rel(p.outDir, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("output path %s is outside the output directory", filePath)
	}
	return path.Join(p.prefix, filepath.ToSlash(rel)), nil
}

func contentTypeFor(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".tif", ".tiff":
		return "image/tiff"
	case ".mvar":
		return "application/octet-stream"
	default:
		return ""
	}
}
