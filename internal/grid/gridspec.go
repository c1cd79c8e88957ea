// Package grid derives the tiling scheme from a storage configuration and
// provides the tile/geobox arithmetic the task generators rely on.
package grid

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r2"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// TileIndex addresses one cell of a grid.
type TileIndex struct {
	X int
	Y int
}

func (t TileIndex) String() string { return fmt.Sprintf("(%d, %d)", t.X, t.Y) }

// GridSpec is an immutable tiling scheme: a CRS plus tile size and
// resolution ordered by the CRS's native dimension order.
type GridSpec struct {
	CRS string
	// TileSize and Resolution follow the CRS dimension order (y/x or
	// latitude/longitude), matching Dimensions.
	TileSize   [2]float64
	Resolution [2]float64
	Dimensions [2]string
}

// Dimensions returns a CRS's native dimension order. Geographic CRSs order
// latitude before longitude; projected CRSs order y before x.
func Dimensions(crs string) [2]string {
	if IsGeographic(crs) {
		return [2]string{"latitude", "longitude"}
	}
	return [2]string{"y", "x"}
}

// IsGeographic reports whether a CRS identifier names a geographic
// (degree-based) system. Anything else is treated as projected.
func IsGeographic(crs string) bool {
	switch strings.ToUpper(strings.TrimSpace(crs)) {
	case "EPSG:4326", "EPSG:4283", "EPSG:4269", "WGS84":
		return true
	}
	return false
}

// NewGridSpec derives a GridSpec from a storage configuration. The storage
// tile_size/resolution maps are reordered to the CRS's dimension order.
// Fails with ConfigurationError when tile_size is absent.
func NewGridSpec(storage config.Storage) (*GridSpec, error) {
	if len(storage.TileSize) == 0 {
		return nil, &config.ConfigurationError{Msg: "storage.tile_size is required for gridded output"}
	}
	dims := Dimensions(storage.CRS)
	spec := &GridSpec{CRS: storage.CRS, Dimensions: dims}
	for i, dim := range dims {
		size, ok := lookupDim(storage.TileSize, dim)
		if !ok {
			return nil, &config.ConfigurationError{Msg: fmt.Sprintf("storage.tile_size missing dimension %q", dim)}
		}
		res, ok := lookupDim(storage.Resolution, dim)
		if !ok {
			return nil, &config.ConfigurationError{Msg: fmt.Sprintf("storage.resolution missing dimension %q", dim)}
		}
		spec.TileSize[i] = size
		spec.Resolution[i] = res
	}
	return spec, nil
}

// ResolutionFor orders a storage resolution map by the CRS's native
// dimension order, for callers that build geoboxes without a full grid
// (arbitrary-region output).
func ResolutionFor(storage config.Storage) ([2]float64, error) {
	dims := Dimensions(storage.CRS)
	var res [2]float64
	for i, dim := range dims {
		v, ok := lookupDim(storage.Resolution, dim)
		if !ok {
			return res, &config.ConfigurationError{Msg: fmt.Sprintf("storage.resolution missing dimension %q", dim)}
		}
		res[i] = v
	}
	return res, nil
}

// lookupDim resolves a dimension by its native name or its x/y alias, so a
// projected config may use either spelling.
func lookupDim(m map[string]float64, dim string) (float64, bool) {
	if v, ok := m[dim]; ok {
		return v, true
	}
	switch dim {
	case "y", "latitude":
		if v, ok := m["y"]; ok {
			return v, true
		}
		v, ok := m["latitude"]
		return v, ok
	case "x", "longitude":
		if v, ok := m["x"]; ok {
			return v, true
		}
		v, ok := m["longitude"]
		return v, ok
	}
	return 0, false
}

// tileSpan returns the absolute (x, y) span of one tile in CRS units.
func (g *GridSpec) tileSpan() (sx, sy float64) {
	return math.Abs(g.TileSize[1]), math.Abs(g.TileSize[0])
}

// TileGeobox returns the pixel grid for one cell of the grid.
func (g *GridSpec) TileGeobox(idx TileIndex) domain.Geobox {
	sx, sy := g.tileSpan()
	extent := r2.RectFromPoints(
		r2.Point{X: float64(idx.X) * sx, Y: float64(idx.Y) * sy},
		r2.Point{X: float64(idx.X+1) * sx, Y: float64(idx.Y+1) * sy},
	)
	return domain.Geobox{CRS: g.CRS, Extent: extent, ResX: g.Resolution[1], ResY: g.Resolution[0]}
}

// TilesOverlapping enumerates the tile indexes whose extent intersects the
// given rectangle, x-major then y ascending.
func (g *GridSpec) TilesOverlapping(extent r2.Rect) []TileIndex {
	if extent.IsEmpty() {
		return nil
	}
	sx, sy := g.tileSpan()
	x0 := int(math.Floor(extent.X.Lo / sx))
	x1 := int(math.Ceil(extent.X.Hi / sx))
	y0 := int(math.Floor(extent.Y.Lo / sy))
	y1 := int(math.Ceil(extent.Y.Hi / sy))
	var out []TileIndex
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			out = append(out, TileIndex{X: x, Y: y})
		}
	}
	return out
}

// TileContaining returns the cell whose extent contains the point.
func (g *GridSpec) TileContaining(p r2.Point) TileIndex {
	sx, sy := g.tileSpan()
	return TileIndex{X: int(math.Floor(p.X / sx)), Y: int(math.Floor(p.Y / sy))}
}
