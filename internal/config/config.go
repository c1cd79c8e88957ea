// Package config loads and validates the YAML run configuration: storage
// layout, source product specs, input region, filter product and date
// ranges.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// ConfigurationError reports a malformed storage or grid specification.
// Fatal, surfaced immediately.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Msg }

// Storage describes the output pixel grid and file chunking. tile_size and
// resolution are keyed by dimension name; the CRS decides dimension order.
type Storage struct {
	Driver         string             `yaml:"driver,omitempty"`
	CRS            string             `yaml:"crs"`
	TileSize       map[string]float64 `yaml:"tile_size,omitempty"`
	Resolution     map[string]float64 `yaml:"resolution"`
	Chunking       map[string]int     `yaml:"chunking,omitempty"`
	DimensionOrder []string           `yaml:"dimension_order,omitempty"`
}

// ChunkSize returns the configured chunk size for a dimension, trying the
// projected name first and the geographic alias second.
func (s Storage) ChunkSize(dim, alias string, fallback int) int {
	if v, ok := s.Chunking[dim]; ok {
		return v
	}
	if v, ok := s.Chunking[alias]; ok {
		return v
	}
	return fallback
}

// InputRegion restricts the spatial scope of a run. At most one of the
// variants is set; an empty region means the full gridded extent.
type InputRegion struct {
	// Geometry is an inline GeoJSON geometry (always EPSG:4326).
	Geometry map[string]any `yaml:"geometry,omitempty"`
	// Tile / Tiles select explicit grid cells.
	Tile  []int   `yaml:"tile,omitempty"`
	Tiles [][]int `yaml:"tiles,omitempty"`
	// FromFile reads the region (or its features) from a vector file.
	FromFile  string `yaml:"from_file,omitempty"`
	FeatureID string `yaml:"feature_id,omitempty"`
	Gridded   *bool  `yaml:"gridded,omitempty"`
	// Explicit lat/lon bounds for an ungridded region.
	Longitude []float64 `yaml:"longitude,omitempty"`
	Latitude  []float64 `yaml:"latitude,omitempty"`
}

// IsEmpty reports whether no spatial restriction was configured.
func (r *InputRegion) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.Geometry == nil && r.Tile == nil && r.Tiles == nil &&
		r.FromFile == "" && r.Longitude == nil && r.Latitude == nil
}

// FilterProduct configures the secondary temporal filtering pass. Method
// names a registered filter predicate; the remaining fields are passed to
// it untouched.
type FilterProduct struct {
	Method string            `yaml:"method"`
	Args   map[string]string `yaml:"args,omitempty"`
	// TideObservations supplies per-feature (time, height) pairs for the
	// tide-height method.
	TideObservations map[string][]TideObservation `yaml:"tide_observations,omitempty"`
}

// TideObservation is one modelled tide height at an acquisition time.
type TideObservation struct {
	Time   string  `yaml:"time"`
	Height float64 `yaml:"height"`
}

// Run is the top-level run configuration.
type Run struct {
	Storage        Storage                `yaml:"storage"`
	Sources        []domain.SourceSpec    `yaml:"sources"`
	OutputProducts []domain.OutputProduct `yaml:"output_products,omitempty"`
	InputRegion    *InputRegion           `yaml:"input_region,omitempty"`
	FilterProduct  *FilterProduct         `yaml:"filter_product,omitempty"`
	DateRanges     []domain.TimePeriod    `yaml:"date_ranges"`
	Location       string                 `yaml:"location,omitempty"`
}

// Load reads and validates a run configuration from a YAML file.
func Load(path string) (*Run, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML run configuration.
func Parse(raw []byte) (*Run, error) {
	var run Run
	if err := yaml.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	return &run, nil
}

// Validate checks the parts of the configuration the engine depends on.
func (r *Run) Validate() error {
	if r.Storage.CRS == "" {
		return &ConfigurationError{Msg: "storage.crs is required"}
	}
	if len(r.Storage.Resolution) == 0 {
		return &ConfigurationError{Msg: "storage.resolution is required"}
	}
	if len(r.Sources) == 0 {
		return &ConfigurationError{Msg: "at least one source spec is required"}
	}
	for i, src := range r.Sources {
		if src.Product == "" {
			return &ConfigurationError{Msg: fmt.Sprintf("sources[%d].product is required", i)}
		}
	}
	for i, p := range r.DateRanges {
		if !p.Start.Before(p.End) {
			return &ConfigurationError{Msg: fmt.Sprintf("date_ranges[%d] is empty or inverted", i)}
		}
	}
	return nil
}
