// Package archive writes the multi-variable output container: one file
// holding many named, chunk-aligned array variables plus a serialized
// per-timestamp dataset-metadata record. The layout is a JSON header with
// fixed variable offsets, a raw data region addressed by seeking, and a
// JSON attribute footer appended at close so task attributes may arrive
// while writing.
package archive

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

var magic = [6]byte{'M', 'V', 'A', 'R', 0, 1}

// VarDef declares one array variable of the container.
type VarDef struct {
	Name   string       `json:"name"`
	Dtype  domain.Dtype `json:"dtype"`
	Nodata float64      `json:"nodata"`
	Units  string       `json:"units,omitempty"`
	// Shape is (time, y, x).
	Shape [3]int `json:"shape"`
	// Chunks is the advisory chunk layout readers should request.
	Chunks [3]int `json:"chunks,omitempty"`
	// Offset of the variable's raw data region, filled by Create.
	Offset int64 `json:"offset"`
}

// DatasetDoc is the per-timestamp dataset-metadata record stored alongside
// the variables.
type DatasetDoc struct {
	Time     string   `json:"time"`
	Datasets []string `json:"datasets"`
	Product  string   `json:"product,omitempty"`
}

type header struct {
	CRS      string       `json:"crs,omitempty"`
	Vars     []VarDef     `json:"vars"`
	Datasets []DatasetDoc `json:"datasets,omitempty"`
}

// Writer is an open container being written.
type Writer struct {
	f      *os.File
	vars   map[string]VarDef
	sizes  map[string]int
	attrs  map[string]string
	closed bool
}

// Create writes the container header and pre-sizes every variable's data
// region. Variable offsets are fixed at creation so disjoint window writes
// never overlap.
func Create(path, crs string, vars []VarDef, datasets []DatasetDoc) (*Writer, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("archive: no variables to record")
	}
	sizes := make(map[string]int, len(vars))
	for _, v := range vars {
		size, err := v.Dtype.Size()
		if err != nil {
			return nil, fmt.Errorf("archive: variable %s: %w", v.Name, err)
		}
		if v.Shape[0] <= 0 || v.Shape[1] <= 0 || v.Shape[2] <= 0 {
			return nil, fmt.Errorf("archive: variable %s has non-positive shape", v.Name)
		}
		sizes[v.Name] = size
	}

	// Header length depends on the offsets it records, so lay out the data
	// region first against a provisional header, then re-encode.
	probe := header{CRS: crs, Vars: vars, Datasets: datasets}
	for pass := 0; pass < 4; pass++ {
		blob, err := json.Marshal(probe)
		if err != nil {
			return nil, fmt.Errorf("archive: encode header: %w", err)
		}
		off := int64(len(magic)) + 8 + int64(len(blob))
		for i := range probe.Vars {
			v := &probe.Vars[i]
			v.Offset = off
			off += int64(v.Shape[0]) * int64(v.Shape[1]) * int64(v.Shape[2]) * int64(sizes[v.Name])
		}
	}
	blob, err := json.Marshal(probe)
	if err != nil {
		return nil, fmt.Errorf("archive: encode header: %w", err)
	}
	if probe.Vars[0].Offset < int64(len(magic))+8+int64(len(blob)) {
		return nil, fmt.Errorf("archive: header layout did not converge")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := append([]byte{}, magic[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(blob)))
	buf = append(buf, blob...)
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("archive: write header: %w", err)
	}

	last := probe.Vars[len(probe.Vars)-1]
	end := last.Offset + int64(last.Shape[0])*int64(last.Shape[1])*int64(last.Shape[2])*int64(sizes[last.Name])
	if err := f.Truncate(end); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("archive: presize: %w", err)
	}

	byName := make(map[string]VarDef, len(probe.Vars))
	for _, v := range probe.Vars {
		byName[v.Name] = v
	}
	return &Writer{f: f, vars: byName, sizes: sizes, attrs: map[string]string{}}, nil
}

// Name returns the underlying file path.
func (w *Writer) Name() string { return w.f.Name() }

// SetAttr records a file-level attribute for the footer.
func (w *Writer) SetAttr(key, value string) { w.attrs[key] = value }

// WriteWindow writes a (h × width) block of variable name at time index t
// and pixel offset (xoff, yoff). data is row-major raw samples of the
// variable's dtype.
func (w *Writer) WriteWindow(name string, t, xoff, yoff, width, height int, data []byte) error {
	v, ok := w.vars[name]
	if !ok {
		return fmt.Errorf("archive: unknown variable %q", name)
	}
	size := w.sizes[name]
	if t < 0 || t >= v.Shape[0] {
		return fmt.Errorf("archive: time index %d outside %d", t, v.Shape[0])
	}
	if xoff < 0 || yoff < 0 || xoff+width > v.Shape[2] || yoff+height > v.Shape[1] {
		return fmt.Errorf("archive: window %dx%d+%d+%d outside %dx%d",
			width, height, xoff, yoff, v.Shape[2], v.Shape[1])
	}
	if len(data) != width*height*size {
		return fmt.Errorf("archive: window payload is %d bytes, want %d", len(data), width*height*size)
	}
	planeBase := v.Offset + int64(t)*int64(v.Shape[1])*int64(v.Shape[2])*int64(size)
	rowBytes := width * size
	for row := 0; row < height; row++ {
		off := planeBase + (int64(yoff+row)*int64(v.Shape[2])+int64(xoff))*int64(size)
		if _, err := w.f.WriteAt(data[row*rowBytes:(row+1)*rowBytes], off); err != nil {
			return fmt.Errorf("archive: write row: %w", err)
		}
	}
	return nil
}

// Close appends the attribute footer and closes the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	footer, err := json.Marshal(w.attrs)
	if err != nil {
		_ = w.f.Close()
		return fmt.Errorf("archive: encode footer: %w", err)
	}
	end, err := w.f.Seek(0, 2)
	if err != nil {
		_ = w.f.Close()
		return err
	}
	buf := append([]byte{}, footer...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(end))
	buf = append(buf, magic[:]...)
	if _, err := w.f.Write(buf); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("archive: write footer: %w", err)
	}
	return w.f.Close()
}
