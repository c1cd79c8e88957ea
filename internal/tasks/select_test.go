package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
)

const featureCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"fid": 1},
      "geometry": {"type": "Polygon", "coordinates": [[[146, -38], [147, -38], [147, -37], [146, -38]]]}
    }
  ]
}`

func TestSelectEmptyRegionIsGridded(t *testing.T) {
	gen, err := Select(nil, albersStorage(), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	defer gen.Close()
	if _, ok := gen.(*Gridded); !ok {
		t.Fatalf("expected gridded generator, got %T", gen)
	}
}

func TestSelectEmptyRegionNeedsTileSize(t *testing.T) {
	storage := albersStorage()
	storage.TileSize = nil
	if _, err := Select(nil, storage, nil); err == nil {
		t.Fatalf("gridded output without tile_size must fail")
	}
}

func TestSelectExplicitTile(t *testing.T) {
	gen, err := Select(&config.InputRegion{Tile: []int{15, -40}}, albersStorage(), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	defer gen.Close()
	g, ok := gen.(*Gridded)
	if !ok {
		t.Fatalf("expected gridded generator, got %T", gen)
	}
	if g.tileIndexes == nil || g.tileIndexes[0].X != 15 || g.tileIndexes[0].Y != -40 {
		t.Fatalf("tile list not applied: %v", g.tileIndexes)
	}
}

func TestSelectFeatureFileUngridded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.geojson")
	if err := os.WriteFile(path, []byte(featureCollection), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	region := &config.InputRegion{FromFile: path, FeatureID: "fid"}
	gen, err := Select(region, geographicStorage(), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	defer gen.Close()
	a, ok := gen.(*Arbitrary)
	if !ok {
		t.Fatalf("expected arbitrary generator, got %T", gen)
	}
	if len(a.features) != 1 || a.features[0].ID != "1" {
		t.Fatalf("features not loaded: %+v", a.features)
	}
}

func TestSelectFeatureFileGriddedBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundary.geojson")
	if err := os.WriteFile(path, []byte(featureCollection), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	gen, err := Select(&config.InputRegion{FromFile: path}, albersStorage(), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	defer gen.Close()
	g, ok := gen.(*Gridded)
	if !ok {
		t.Fatalf("file without feature_id must produce a gridded boundary run, got %T", gen)
	}
	if g.geopolygon == nil {
		t.Fatalf("boundary extent not applied")
	}
}

func TestSelectLatLonBoundsUngridded(t *testing.T) {
	region := &config.InputRegion{Longitude: []float64{146, 147}, Latitude: []float64{-38, -37}}
	gen, err := Select(region, geographicStorage(), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	defer gen.Close()
	if _, ok := gen.(*Arbitrary); !ok {
		t.Fatalf("expected arbitrary generator, got %T", gen)
	}
}
