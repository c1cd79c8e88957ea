package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/blob"
)

func TestPublishUploadsCommittedFiles(t *testing.T) {
	task := testTask()
	outDir := t.TempDir()
	rel := filepath.Join("15_-40", "wofs.tif")
	local := filepath.Join(outDir, rel)
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(local, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}

	store := blob.NewMemory()
	pub := NewPublisher(store, outDir, "wofs_annual", nil)
	ctx := context.Background()
	if err := pub.Publish(ctx, task, []string{local}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	info, err := store.Head(ctx, "wofs_annual/15_-40/wofs.tif")
	if err != nil {
		t.Fatalf("artifact not stored: %v", err)
	}
	if info.ContentType != "image/tiff" {
		t.Fatalf("content type: %q", info.ContentType)
	}
	if info.Metadata["x"] != "15" || info.Metadata["epoch_start"] != "2010-01-01" {
		t.Fatalf("provenance metadata: %+v", info.Metadata)
	}
}

func TestPublishSkipsAlreadyPublished(t *testing.T) {
	task := testTask()
	outDir := t.TempDir()
	local := filepath.Join(outDir, "out.tif")
	if err := os.WriteFile(local, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}

	store := blob.NewMemory()
	pub := NewPublisher(store, outDir, "", nil)
	ctx := context.Background()
	if err := pub.Publish(ctx, task, []string{local}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := pub.Publish(ctx, task, []string{local}); err != nil {
		t.Fatalf("re-publishing a finished task must not fail: %v", err)
	}
}

func TestPublishRejectsPathOutsideOutputDir(t *testing.T) {
	task := testTask()
	outDir := t.TempDir()
	other := filepath.Join(t.TempDir(), "elsewhere.tif")
	if err := os.WriteFile(other, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	pub := NewPublisher(blob.NewMemory(), outDir, "", nil)
	if err := pub.Publish(context.Background(), task, []string{other}); err == nil {
		t.Fatalf("path outside the output directory must be rejected")
	}
}
