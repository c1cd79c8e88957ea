package domain

import (
	"math"

	"github.com/golang/geo/r2"
)

// Geobox describes a raster's pixel grid: a rectangular extent in a named
// CRS plus the signed per-axis resolution. Fixed at task creation.
type Geobox struct {
	CRS    string
	Extent r2.Rect
	// ResX and ResY are signed pixel sizes in CRS units; ResY is negative
	// for north-up grids.
	ResX float64
	ResY float64
}

// Width is the pixel count along the x axis.
func (g Geobox) Width() int {
	if g.ResX == 0 {
		return 0
	}
	return int(math.Round(g.Extent.X.Length() / math.Abs(g.ResX)))
}

// Height is the pixel count along the y axis.
func (g Geobox) Height() int {
	if g.ResY == 0 {
		return 0
	}
	return int(math.Round(g.Extent.Y.Length() / math.Abs(g.ResY)))
}

// Origin returns the CRS coordinates of the (0,0) pixel corner: top-left
// for north-up grids, bottom-left otherwise.
func (g Geobox) Origin() (x, y float64) {
	x = g.Extent.X.Lo
	y = g.Extent.Y.Lo
	if g.ResY < 0 {
		y = g.Extent.Y.Hi
	}
	return x, y
}

// GeoboxFromExtent snaps an arbitrary extent outward onto the given
// resolution and returns the covering geobox.
func GeoboxFromExtent(extent r2.Rect, crs string, resX, resY float64) Geobox {
	ax, ay := math.Abs(resX), math.Abs(resY)
	snapped := r2.RectFromPoints(
		r2.Point{X: math.Floor(extent.X.Lo/ax) * ax, Y: math.Floor(extent.Y.Lo/ay) * ay},
		r2.Point{X: math.Ceil(extent.X.Hi/ax) * ax, Y: math.Ceil(extent.Y.Hi/ay) * ay},
	)
	return Geobox{CRS: crs, Extent: snapped, ResX: resX, ResY: resY}
}
