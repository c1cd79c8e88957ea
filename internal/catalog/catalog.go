// Package catalog defines the dataset index interface the task generators
// query, plus memory, sqlite and postgres backed adapters. The index engine
// itself (query planning, lineage, full metadata) is an external system;
// these adapters expose the narrow search surface the generators need.
package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/golang/geo/r2"

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Query restricts a dataset search. A nil Extent means no spatial filter.
// SourceFilter is a raw "key=value" restriction on dataset metadata.
type Query struct {
	Product      string
	Time         domain.TimePeriod
	Extent       *r2.Rect
	SourceFilter string
}

// Catalog is the dataset index search surface consumed by the generators.
// A failed search is fatal to the run; callers do not retry internally.
type Catalog interface {
	FindDatasets(ctx context.Context, q Query) ([]domain.Dataset, error)
	Close() error
}

// GroupDatasets buckets raw dataset records into a time-indexed sequence of
// slices using the given group-by method, ascending in time. Datasets whose
// timestamp cannot be bucketed are returned separately so callers can
// report them.
func GroupDatasets(datasets []domain.Dataset, by domain.GroupBy) ([]domain.TimeSlice, []domain.Dataset) {
	buckets := map[time.Time][]domain.Dataset{}
	var ungrouped []domain.Dataset
	for _, ds := range datasets {
		if ds.CenterTime.IsZero() {
			ungrouped = append(ungrouped, ds)
			continue
		}
		key := groupKey(ds, by)
		buckets[key] = append(buckets[key], ds)
	}
	slices := make([]domain.TimeSlice, 0, len(buckets))
	for t, group := range buckets {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		slices = append(slices, domain.TimeSlice{Time: t, Datasets: group})
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].Time.Before(slices[j].Time) })
	return slices, ungrouped
}

func groupKey(ds domain.Dataset, by domain.GroupBy) time.Time {
	switch by {
	case domain.GroupBySolarDay:
		// Shift by the footprint's longitude (15 degrees per hour) before
		// truncating to the day, so acquisitions either side of midnight UTC
		// land in the same local solar day.
		shift := time.Duration(ds.Lon / 15.0 * float64(time.Hour))
		return ds.CenterTime.UTC().Add(shift).Truncate(24 * time.Hour)
	default:
		return ds.CenterTime.UTC()
	}
}

// matchesSourceFilter applies the raw key=value metadata restriction.
func matchesSourceFilter(ds domain.Dataset, filter string) bool {
	if filter == "" {
		return true
	}
	key, value, ok := splitKeyValue(filter)
	if !ok {
		return false
	}
	return ds.Metadata[key] == value
}

func splitKeyValue(s string) (key, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func rectFromBounds(xLo, xHi, yLo, yHi float64) r2.Rect {
	return r2.RectFromPoints(r2.Point{X: xLo, Y: yLo}, r2.Point{X: xHi, Y: yHi})
}

// overlaps reports whether a dataset footprint intersects the query extent.
func overlaps(ds domain.Dataset, extent *r2.Rect) bool {
	if extent == nil {
		return true
	}
	return ds.Extent.Intersects(*extent)
}
