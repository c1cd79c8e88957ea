package output

import (
	"fmt"
	"time"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/archive"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/metrics"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// multivarDriver writes one multi-variable archive file per output
// product. All of a product's measurements live in the one file, so the
// filename template must not vary per measurement.
type multivarDriver struct {
	driverState
	writers map[string]*archive.Writer
}

var _ Driver = (*multivarDriver)(nil)

// NewMultivarDriver builds the default archive-file driver.
func NewMultivarDriver(p Params) (Driver, error) {
	d := &multivarDriver{
		driverState: newDriverState("multivar", p.Task, p.Storage, p.OutputDir, p.Logger),
		writers:     map[string]*archive.Writer{},
	}
	return d, nil
}

func (d *multivarDriver) OpenOutputFiles() error {
	if len(d.task.OutputProducts) == 0 {
		return fmt.Errorf("task has no output products")
	}
	for name, prod := range d.task.OutputProducts {
		if err := d.openProduct(name, prod); err != nil {
			_, _ = d.files.close(false)
			return err
		}
	}
	d.open = true
	return nil
}

func (d *multivarDriver) openProduct(name string, prod *domain.OutputProduct) error {
	tmpPath, finalPath, err := prepareOutputFile(d.outDir, d.task, prod, []string{".mvar"}, nil)
	if err != nil {
		return err
	}
	gb := d.task.Geobox
	width, height := gb.Width(), gb.Height()
	chunkY := d.storage.ChunkSize("y", "latitude", height)
	chunkX := d.storage.ChunkSize("x", "longitude", width)
	vars := make([]archive.VarDef, 0, len(prod.Measurements))
	for _, m := range prod.Measurements {
		vars = append(vars, archive.VarDef{
			Name:   m.Name,
			Dtype:  m.Dtype,
			Nodata: m.Nodata,
			Units:  m.Units,
			Shape:  [3]int{1, height, width},
			Chunks: [3]int{1, chunkY, chunkX},
		})
	}
	w, err := archive.Create(tmpPath, gb.CRS, vars, d.datasetDocs())
	if err != nil {
		return fmt.Errorf("open %s: %w", tmpPath, err)
	}
	for k, v := range d.task.TimeAttributes {
		w.SetAttr(k, v)
	}
	d.writers[name] = w
	d.files.setLeaf(name, "", &leafHandle{tmpPath: tmpPath, finalPath: finalPath, closer: w})
	d.logger.Debug("opened output file", "product", name, "path", finalPath)
	return nil
}

// datasetDocs serializes the task's source provenance: one record per
// observed timestamp per source product.
func (d *multivarDriver) datasetDocs() []archive.DatasetDoc {
	var docs []archive.DatasetDoc
	for _, src := range d.task.Sources {
		if src.Data == nil {
			continue
		}
		for _, slice := range src.Data.Sources {
			ids := make([]string, 0, len(slice.Datasets))
			for _, ds := range slice.Datasets {
				ids = append(ids, ds.ID)
			}
			docs = append(docs, archive.DatasetDoc{
				Time:     slice.Time.UTC().Format(time.RFC3339),
				Datasets: ids,
				Product:  src.Spec.Product,
			})
		}
	}
	return docs
}

func (d *multivarDriver) WriteData(product, measurement string, win Window, arr Array) error {
	if err := d.requireOpen(); err != nil {
		return err
	}
	w, ok := d.writers[product]
	if !ok {
		return fmt.Errorf("no open output for product %q", product)
	}
	if err := w.WriteWindow(measurement, 0, win.XOff, win.YOff, win.Width, win.Height, arr.Data); err != nil {
		return err
	}
	metrics.BytesWritten.WithLabelValues(d.name).Add(float64(len(arr.Data)))
	return nil
}

func (d *multivarDriver) WriteGlobalAttributes(attrs map[string]string) error {
	if err := d.requireOpen(); err != nil {
		return err
	}
	for _, w := range d.writers {
		for k, v := range attrs {
			w.SetAttr(k, v)
		}
	}
	return nil
}

func (d *multivarDriver) CloseFiles(success bool) ([]string, error) {
	paths, err := d.closeFiles(success, true)
	d.writers = map[string]*archive.Writer{}
	return paths, err
}
