package domain

import "fmt"

// Dtype enumerates the pixel data types measurements may carry.
type Dtype string

// Supported measurement data types.
const (
	DtypeInt8    Dtype = "int8"
	DtypeUint8   Dtype = "uint8"
	DtypeInt16   Dtype = "int16"
	DtypeUint16  Dtype = "uint16"
	DtypeInt32   Dtype = "int32"
	DtypeUint32  Dtype = "uint32"
	DtypeFloat32 Dtype = "float32"
	DtypeFloat64 Dtype = "float64"
)

// Size returns the per-sample byte width, or an error for unknown types.
func (d Dtype) Size() (int, error) {
	switch d {
	case DtypeInt8, DtypeUint8:
		return 1, nil
	case DtypeInt16, DtypeUint16:
		return 2, nil
	case DtypeInt32, DtypeUint32, DtypeFloat32:
		return 4, nil
	case DtypeFloat64:
		return 8, nil
	}
	return 0, fmt.Errorf("unknown dtype %q", string(d))
}

// Signed reports whether the type carries negative values.
func (d Dtype) Signed() bool {
	switch d {
	case DtypeInt8, DtypeInt16, DtypeInt32, DtypeFloat32, DtypeFloat64:
		return true
	}
	return false
}

// MaskSpec declares one mask product applied to a source product. Flags are
// passed through to the computation stage untouched.
type MaskSpec struct {
	Product string            `yaml:"product"`
	Flags   map[string]string `yaml:"flags,omitempty"`
}

// SourceSpec declares one source product feeding the statistic, with an
// optional time restriction, group-by method, raw source filter expression
// and zero or more mask declarations.
type SourceSpec struct {
	Product      string      `yaml:"product"`
	Time         *TimePeriod `yaml:"time,omitempty"`
	GroupBy      GroupBy     `yaml:"group_by,omitempty"`
	SourceFilter string      `yaml:"source_filter,omitempty"`
	Masks        []MaskSpec  `yaml:"masks,omitempty"`
}

// EffectiveGroupBy resolves the spec's group-by method, defaulting to time.
func (s SourceSpec) EffectiveGroupBy() GroupBy {
	if s.GroupBy == "" {
		return GroupByTime
	}
	return s.GroupBy
}

// Measurement is one named data variable/band of an output product.
type Measurement struct {
	Name   string  `yaml:"name"`
	Dtype  Dtype   `yaml:"dtype"`
	Nodata float64 `yaml:"nodata"`
	Units  string  `yaml:"units,omitempty"`
}

// OutputProduct describes one named result of the computation stage: its
// measurements (band order), the filename template its outputs resolve
// against, and format-specific output parameters.
type OutputProduct struct {
	Name             string            `yaml:"name"`
	Measurements     []Measurement     `yaml:"measurements"`
	FilePathTemplate string            `yaml:"file_path_template"`
	OutputParams     map[string]string `yaml:"output_params,omitempty"`
}

// Measurement returns the named measurement, or ok=false.
func (p *OutputProduct) Measurement(name string) (Measurement, bool) {
	for _, m := range p.Measurements {
		if m.Name == name {
			return m, true
		}
	}
	return Measurement{}, false
}

// BandIndex returns the 1-based band position of the named measurement, or
// 0 when absent. Band order is declaration order.
func (p *OutputProduct) BandIndex(name string) int {
	for i, m := range p.Measurements {
		if m.Name == name {
			return i + 1
		}
	}
	return 0
}
