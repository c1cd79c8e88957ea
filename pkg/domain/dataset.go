package domain

import (
	"time"

	"github.com/golang/geo/r2"
)

// GroupBy names the method used to bucket raw dataset records into
// time-indexed slots.
type GroupBy string

const (
	// GroupByTime buckets datasets by their exact acquisition timestamp.
	GroupByTime GroupBy = "time"
	// GroupBySolarDay buckets datasets by local solar day, shifting each
	// acquisition time by its footprint's longitude before truncating.
	GroupBySolarDay GroupBy = "solar_day"
)

// Dataset is a lightweight reference to one catalogued dataset. Extent is
// expressed in the output grid's CRS (projection into that CRS is the
// catalog adapter's responsibility); Lon is the geographic longitude of the
// footprint centre, used only for solar-day grouping.
type Dataset struct {
	ID         string            `json:"id"`
	Product    string            `json:"product"`
	CenterTime time.Time         `json:"center_time"`
	Extent     r2.Rect           `json:"-"`
	Lon        float64           `json:"lon,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// TimeSlice is one slot of a time-indexed tile: every dataset bucketed into
// the same group-by instant.
type TimeSlice struct {
	Time     time.Time
	Datasets []Dataset
}

// Tile bundles the time-indexed dataset references for one spatial unit
// with the pixel grid they will be loaded onto.
type Tile struct {
	Sources []TimeSlice
	Geobox  Geobox
}

// Timestamps returns the tile's time index in stored order.
func (t *Tile) Timestamps() []time.Time {
	out := make([]time.Time, len(t.Sources))
	for i, s := range t.Sources {
		out[i] = s.Time
	}
	return out
}

// SelectTimes returns a copy of the tile narrowed to the slices whose
// timestamp satisfies keep. The geobox is unchanged.
func (t *Tile) SelectTimes(keep func(time.Time) bool) *Tile {
	narrowed := &Tile{Geobox: t.Geobox}
	for _, s := range t.Sources {
		if keep(s.Time) {
			narrowed.Sources = append(narrowed.Sources, s)
		}
	}
	return narrowed
}

// Datasets flattens every slice's dataset references in time order.
func (t *Tile) Datasets() []Dataset {
	var out []Dataset
	for _, s := range t.Sources {
		out = append(out, s.Datasets...)
	}
	return out
}
