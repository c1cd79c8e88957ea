package output

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/metrics"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Window is a rectangular region of a measurement raster, in pixel
// coordinates relative to the task geobox origin.
type Window struct {
	XOff   int
	YOff   int
	Width  int
	Height int
}

// Array carries a block of pixel data destined for a window. Data holds
// little-endian raw samples, Window.Width*Window.Height elements of the
// given dtype.
type Array struct {
	Dtype domain.Dtype
	Data  []byte
}

// Driver writes the results of one statistics task to storage. The
// lifecycle is OpenOutputFiles, any number of WriteData and
// WriteGlobalAttributes calls, then exactly one CloseFiles. CloseFiles
// with success=true commits staged files to their final paths; with
// success=false it leaves the temp files unfinalized.
type Driver interface {
	// OpenOutputFiles creates all staged output files for the task.
	OpenOutputFiles() error

	// WriteData writes one window of one measurement of one output
	// product.
	WriteData(product, measurement string, win Window, arr Array) error

	// WriteGlobalAttributes attaches file-level metadata to every open
	// output.
	WriteGlobalAttributes(attrs map[string]string) error

	// CloseFiles closes all outputs, committing on success. It returns
	// the final output paths whether committing or discarding.
	CloseFiles(success bool) ([]string, error)
}

// Run drives the full output lifecycle around fn. If fn returns an
// error or panics, the outputs are closed with success=false so no
// partial file is finalized; panics are re-raised after cleanup.
func Run(drv Driver, fn func(Driver) error) (paths []string, err error) {
	if err := drv.OpenOutputFiles(); err != nil {
		return nil, err
	}
	success := false
	defer func() {
		closed, cerr := drv.CloseFiles(success)
		if paths == nil {
			paths = closed
		}
		if err == nil {
			err = cerr
		}
	}()
	if err := fn(drv); err != nil {
		return nil, err
	}
	success = true
	return nil, nil
}

// driverState is the common scaffolding shared by the concrete drivers:
// the task being written, storage parameters, open handles and logging.
type driverState struct {
	task    *domain.StatsTask
	storage config.Storage
	outDir  string
	files   *fileSet
	logger  *slog.Logger
	open    bool
	name    string
}

func newDriverState(name string, task *domain.StatsTask, storage config.Storage, outDir string, logger *slog.Logger) driverState {
	if logger == nil {
		logger = slog.Default()
	}
	return driverState{
		task:    task,
		storage: storage,
		outDir:  outDir,
		files:   newFileSet(),
		logger:  logger.With("driver", name),
		name:    name,
	}
}

func (d *driverState) requireOpen() error {
	if !d.open {
		return ErrNotOpen
	}
	return nil
}

// closeFiles implements the shared commit/discard path. rename controls
// whether committing moves temp files (the ENVI driver finalizes by
// conversion instead).
func (d *driverState) closeFiles(success, rename bool) ([]string, error) {
	if !d.open {
		return nil, ErrNotOpen
	}
	d.open = false
	paths, err := d.files.close(success && rename)
	if success {
		metrics.OutputsCommitted.WithLabelValues(d.name).Add(float64(len(paths)))
		d.logger.Info("outputs committed", "count", len(paths))
	} else {
		metrics.OutputsDiscarded.WithLabelValues(d.name).Add(float64(len(paths)))
		d.logger.Warn("outputs discarded", "count", len(paths))
	}
	return paths, err
}

// prepareOutputFile resolves an output product's file path template
// against the task, validates the extension, refuses to overwrite an
// existing output and stages a temp path next to the final path. A
// stale temp file from an earlier failed run is removed.
func prepareOutputFile(outDir string, task *domain.StatsTask, prod *domain.OutputProduct, accepted []string, extras map[string]string) (tmpPath, finalPath string, err error) {
	rel := FormatPath(prod.FilePathTemplate, task, extras)
	finalPath = filepath.Join(outDir, rel)
	if !hasExtension(finalPath, accepted) {
		return "", "", &InvalidExtensionError{Path: finalPath, Accepted: accepted}
	}
	if _, serr := os.Stat(finalPath); serr == nil {
		return "", "", &AlreadyExistsError{Path: finalPath}
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", "", fmt.Errorf("create output directory: %w", err)
	}
	tmpPath = finalPath + ".tmp"
	if _, serr := os.Stat(tmpPath); serr == nil {
		if err := os.Remove(tmpPath); err != nil {
			return "", "", fmt.Errorf("remove stale temp file: %w", err)
		}
	}
	return tmpPath, finalPath, nil
}
