package domain

import (
	"testing"

	"github.com/golang/geo/r2"
)

func TestGeoboxDimensionsAndOrigin(t *testing.T) {
	gb := Geobox{
		CRS:    "EPSG:3577",
		Extent: r2.RectFromPoints(r2.Point{X: 1500000, Y: -4000000}, r2.Point{X: 1600000, Y: -3900000}),
		ResX:   25,
		ResY:   -25,
	}
	if gb.Width() != 4000 || gb.Height() != 4000 {
		t.Fatalf("expected 4000x4000, got %dx%d", gb.Width(), gb.Height())
	}
	x, y := gb.Origin()
	if x != 1500000 || y != -3900000 {
		t.Fatalf("north-up origin must be top-left, got (%v, %v)", x, y)
	}
}

func TestGeoboxFromExtentSnapsOutward(t *testing.T) {
	extent := r2.RectFromPoints(r2.Point{X: 12, Y: 7}, r2.Point{X: 88, Y: 93})
	gb := GeoboxFromExtent(extent, "EPSG:3577", 25, -25)
	if gb.Extent.X.Lo != 0 || gb.Extent.Y.Lo != 0 {
		t.Fatalf("lower corner not snapped down: %+v", gb.Extent)
	}
	if gb.Extent.X.Hi != 100 || gb.Extent.Y.Hi != 100 {
		t.Fatalf("upper corner not snapped up: %+v", gb.Extent)
	}
	if gb.Width() != 4 || gb.Height() != 4 {
		t.Fatalf("expected 4x4 pixels, got %dx%d", gb.Width(), gb.Height())
	}
}
