package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/metrics"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/raster"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

const varNamePlaceholder = "{var_name}"

// bandRef locates one measurement's band inside an open raster file.
type bandRef struct {
	file *raster.File
	band int
}

// geotiffDriver writes GeoTIFF outputs. A product with more than one
// measurement and a {var_name} placeholder in its template writes one
// single-band file per measurement; otherwise one multi-band file whose
// measurements must share dtype and nodata.
type geotiffDriver struct {
	driverState
	accepted []string
	bands    map[string]bandRef
}

var _ Driver = (*geotiffDriver)(nil)

// NewGeotiffDriver builds the GeoTIFF driver.
func NewGeotiffDriver(p Params) (Driver, error) {
	return newGeotiffDriver("geotiff", []string{".tif", ".tiff"}, p), nil
}

func newGeotiffDriver(name string, accepted []string, p Params) *geotiffDriver {
	return &geotiffDriver{
		driverState: newDriverState(name, p.Task, p.Storage, p.OutputDir, p.Logger),
		accepted:    accepted,
		bands:       map[string]bandRef{},
	}
}

func bandKey(product, measurement string) string { return product + "\x00" + measurement }

func (d *geotiffDriver) OpenOutputFiles() error {
	if len(d.task.OutputProducts) == 0 {
		return fmt.Errorf("task has no output products")
	}
	for name, prod := range d.task.OutputProducts {
		multi := len(prod.Measurements) > 1 && strings.Contains(prod.FilePathTemplate, varNamePlaceholder)
		var err error
		if multi {
			err = d.openPerMeasurement(name, prod)
		} else {
			err = d.openCombined(name, prod)
		}
		if err != nil {
			_, _ = d.files.close(false)
			return err
		}
	}
	d.open = true
	return nil
}

// openCombined writes all of a product's measurements as bands of one
// file. The format stores a single dtype and nodata for the whole file,
// so the measurements must agree on both.
func (d *geotiffDriver) openCombined(name string, prod *domain.OutputProduct) error {
	if len(prod.Measurements) == 0 {
		return fmt.Errorf("output product %q has no measurements", name)
	}
	first := prod.Measurements[0]
	for _, m := range prod.Measurements[1:] {
		if m.Dtype != first.Dtype {
			return &InconsistentMeasurementsError{Product: name, Field: "dtype"}
		}
		if m.Nodata != first.Nodata {
			return &InconsistentMeasurementsError{Product: name, Field: "nodata"}
		}
	}
	tmpPath, finalPath, err := prepareOutputFile(d.outDir, d.task, prod, d.accepted, nil)
	if err != nil {
		return err
	}
	f, err := d.createRaster(tmpPath, len(prod.Measurements), first)
	if err != nil {
		return err
	}
	for i, m := range prod.Measurements {
		f.SetBandTag(i+1, "name", m.Name)
		d.bands[bandKey(name, m.Name)] = bandRef{file: f, band: i + 1}
	}
	d.files.setLeaf(name, "", &leafHandle{tmpPath: tmpPath, finalPath: finalPath, closer: f})
	d.logger.Debug("opened output file", "product", name, "path", finalPath)
	return nil
}

// openPerMeasurement writes one single-band file per measurement, with
// the measurement name substituted into the template.
func (d *geotiffDriver) openPerMeasurement(name string, prod *domain.OutputProduct) error {
	for _, m := range prod.Measurements {
		tmpPath, finalPath, err := prepareOutputFile(d.outDir, d.task, prod, d.accepted,
			map[string]string{"var_name": m.Name})
		if err != nil {
			return err
		}
		f, err := d.createRaster(tmpPath, 1, m)
		if err != nil {
			return err
		}
		f.SetBandTag(1, "name", m.Name)
		d.bands[bandKey(name, m.Name)] = bandRef{file: f, band: 1}
		d.files.setLeaf(name, m.Name, &leafHandle{tmpPath: tmpPath, finalPath: finalPath, closer: f})
		d.logger.Debug("opened output file", "product", name, "measurement", m.Name, "path", finalPath)
	}
	return nil
}

func (d *geotiffDriver) createRaster(path string, bands int, m domain.Measurement) (*raster.File, error) {
	gb := d.task.Geobox
	originX, originY := gb.Origin()
	f, err := raster.Create(path, raster.Options{
		Width:   gb.Width(),
		Height:  gb.Height(),
		Bands:   bands,
		Dtype:   m.Dtype,
		Nodata:  effectiveNodata(m),
		CRS:     gb.CRS,
		OriginX: originX,
		OriginY: originY,
		ResX:    gb.ResX,
		ResY:    gb.ResY,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f.SetTag("source_products", strings.Join(d.task.SourceProductNames(), ","))
	f.SetTag("start_date", d.task.TimePeriod.Start.Format("2006-01-02"))
	f.SetTag("end_date", d.task.TimePeriod.End.Format("2006-01-02"))
	f.SetTag("created", time.Now().UTC().Format(time.RFC3339))
	return f, nil
}

// effectiveNodata clamps a negative nodata on an unsigned byte band to
// 255, which is what it wraps to on write anyway.
func effectiveNodata(m domain.Measurement) float64 {
	if m.Dtype == domain.DtypeUint8 && m.Nodata < 0 {
		return 255
	}
	return m.Nodata
}

func (d *geotiffDriver) WriteData(product, measurement string, win Window, arr Array) error {
	if err := d.requireOpen(); err != nil {
		return err
	}
	ref, ok := d.bands[bandKey(product, measurement)]
	if !ok {
		return fmt.Errorf("no open output for product %q measurement %q", product, measurement)
	}
	if err := ref.file.WriteWindow(ref.band, win.XOff, win.YOff, win.Width, win.Height, arr.Data); err != nil {
		return err
	}
	metrics.BytesWritten.WithLabelValues(d.name).Add(float64(len(arr.Data)))
	return nil
}

func (d *geotiffDriver) WriteGlobalAttributes(attrs map[string]string) error {
	if err := d.requireOpen(); err != nil {
		return err
	}
	seen := map[*raster.File]bool{}
	for _, ref := range d.bands {
		if seen[ref.file] {
			continue
		}
		seen[ref.file] = true
		for k, v := range attrs {
			ref.file.SetTag(k, v)
		}
	}
	return nil
}

func (d *geotiffDriver) CloseFiles(success bool) ([]string, error) {
	paths, err := d.closeFiles(success, true)
	d.bands = map[string]bandRef{}
	return paths, err
}
