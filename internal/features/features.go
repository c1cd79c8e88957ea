// Package features reads polygon features from GeoJSON vector files. Only
// the narrow surface the task generators need is exposed: feature identity
// and footprint extents. Coordinates are used as-is; reprojection into the
// output CRS is an external concern.
package features

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang/geo/r2"
)

// Feature is one geometry + identifier from a vector file.
type Feature struct {
	ID     string
	Extent r2.Rect
	// Geometry is the raw GeoJSON geometry, passed through for consumers
	// that do their own geometry algebra.
	Geometry map[string]any
}

type geojsonFile struct {
	Type     string           `json:"type"`
	Features []geojsonFeature `json:"features"`
}

type geojsonFeature struct {
	ID         any             `json:"id,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ReadFeatures loads every feature of a GeoJSON FeatureCollection. The
// feature identifier is taken from the named property, falling back to the
// top-level GeoJSON id when idField is empty or absent.
func ReadFeatures(path, idField string) ([]Feature, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	var file geojsonFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if file.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%s: expected FeatureCollection, got %q", path, file.Type)
	}
	out := make([]Feature, 0, len(file.Features))
	for i, f := range file.Features {
		feat, err := decodeFeature(f, idField)
		if err != nil {
			return nil, fmt.Errorf("%s feature %d: %w", path, i, err)
		}
		out = append(out, feat)
	}
	return out, nil
}

// BoundaryExtent returns the bounding extent of every feature in the file,
// used when a vector file defines a gridded region boundary.
func BoundaryExtent(path string) (r2.Rect, error) {
	feats, err := ReadFeatures(path, "")
	if err != nil {
		return r2.Rect{}, err
	}
	if len(feats) == 0 {
		return r2.Rect{}, fmt.Errorf("%s: no features", path)
	}
	extent := feats[0].Extent
	for _, f := range feats[1:] {
		extent = extent.Union(f.Extent)
	}
	return extent, nil
}

func decodeFeature(f geojsonFeature, idField string) (Feature, error) {
	var geom map[string]any
	if err := json.Unmarshal(f.Geometry, &geom); err != nil {
		return Feature{}, fmt.Errorf("decode geometry: %w", err)
	}
	extent, err := GeometryExtent(geom)
	if err != nil {
		return Feature{}, err
	}
	id := ""
	if idField != "" {
		if v, ok := f.Properties[idField]; ok {
			id = fmt.Sprintf("%v", v)
		}
	}
	if id == "" && f.ID != nil {
		id = fmt.Sprintf("%v", f.ID)
	}
	return Feature{ID: id, Extent: extent, Geometry: geom}, nil
}

// GeometryExtent computes the bounding rectangle of any GeoJSON geometry by
// walking its nested coordinate arrays.
func GeometryExtent(geom map[string]any) (r2.Rect, error) {
	coords, ok := geom["coordinates"]
	if !ok {
		return r2.Rect{}, fmt.Errorf("geometry has no coordinates")
	}
	var extent r2.Rect
	found := false
	var walk func(v any) error
	walk = func(v any) error {
		arr, ok := v.([]any)
		if !ok {
			return fmt.Errorf("malformed coordinates")
		}
		if len(arr) >= 2 {
			x, xok := arr[0].(float64)
			y, yok := arr[1].(float64)
			if xok && yok {
				p := r2.Point{X: x, Y: y}
				if !found {
					extent = r2.RectFromPoints(p)
					found = true
				} else {
					extent = extent.AddPoint(p)
				}
				return nil
			}
		}
		for _, child := range arr {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(coords); err != nil {
		return r2.Rect{}, err
	}
	if !found {
		return r2.Rect{}, fmt.Errorf("geometry has no positions")
	}
	return extent, nil
}
