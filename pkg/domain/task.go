// Package domain defines the core value types shared between the task
// generation engine, the statistic computation stage and the output driver
// framework: tasks, data sources, tiles, dataset references and the product
// specifications they are built from.
package domain

import (
	"fmt"
	"sort"
	"time"
)

// TimePeriod is a half-open [Start, End) interval bounding the temporal
// scope of a query or task.
type TimePeriod struct {
	Start time.Time `yaml:"start" json:"start"`
	End   time.Time `yaml:"end" json:"end"`
}

// Contains reports whether t falls inside the half-open interval.
func (p TimePeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// IsZero reports whether both bounds are unset.
func (p TimePeriod) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// Intersect returns the overlap of two periods, or ok=false when the
// intervals are disjoint or the overlap is empty.
func (p TimePeriod) Intersect(other TimePeriod) (TimePeriod, bool) {
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	if !start.Before(end) {
		return TimePeriod{}, false
	}
	return TimePeriod{Start: start, End: end}, true
}

func (p TimePeriod) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}

// SpatialID identifies the spatial unit of a task. Gridded tasks carry
// "x"/"y" cell coordinates; arbitrary-region tasks carry "feature_id".
// The temporal filter step may overwrite the x/y slots with non-spatial
// filename disambiguators, which path templating relies on.
type SpatialID map[string]string

// CellID builds the gridded variant of a SpatialID.
func CellID(x, y int) SpatialID {
	return SpatialID{"x": fmt.Sprintf("%d", x), "y": fmt.Sprintf("%d", y)}
}

// FeatureSpatialID builds the arbitrary-region variant of a SpatialID.
func FeatureSpatialID(id string) SpatialID {
	return SpatialID{"feature_id": id}
}

// StatsTask is one unit of statistic computation work: a spatial unit, a
// time period, and the matched source/mask datasets feeding it. Tasks are
// mutated by filtering steps between creation and yield, then treated as
// read-only by computation and output driving.
type StatsTask struct {
	TimePeriod TimePeriod
	SpatialID  SpatialID
	Geobox     Geobox

	// Sources is append-only during construction; declaration order of the
	// originating source specs is preserved via DataSource.SourceIndex.
	Sources []*DataSource

	// OutputProducts is populated by the configuration stage between task
	// generation and output driving, keyed by output product name.
	OutputProducts map[string]*OutputProduct

	// TimeAttributes carries free-form task-level metadata attached to every
	// output file (period bounds, provenance).
	TimeAttributes map[string]string
}

// NewStatsTask constructs an empty task for one (period, spatial unit) pair.
func NewStatsTask(period TimePeriod, id SpatialID, geobox Geobox) *StatsTask {
	return &StatsTask{
		TimePeriod:     period,
		SpatialID:      id,
		Geobox:         geobox,
		OutputProducts: map[string]*OutputProduct{},
		TimeAttributes: map[string]string{},
	}
}

// AddSource appends a matched data source. Insertion order is the order the
// source specs were declared in.
func (t *StatsTask) AddSource(src *DataSource) { t.Sources = append(t.Sources, src) }

// SourceProductNames lists the primary product of every data source, in
// declaration order, without duplicates.
func (t *StatsTask) SourceProductNames() []string {
	seen := map[string]struct{}{}
	var names []string
	for _, src := range t.Sources {
		if _, ok := seen[src.Spec.Product]; ok {
			continue
		}
		seen[src.Spec.Product] = struct{}{}
		names = append(names, src.Spec.Product)
	}
	return names
}

// SourceTimestamps returns every timestamp across all data sources, sorted
// ascending. Used by the temporal filtering pass.
func (t *StatsTask) SourceTimestamps() []time.Time {
	var all []time.Time
	for _, src := range t.Sources {
		if src.Data == nil {
			continue
		}
		all = append(all, src.Data.Timestamps()...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })
	return all
}

// DataSource is one source product's contribution to a task: the primary
// tile plus one mask tile slot per declared mask spec, aligned to the
// primary tile's time index. A nil mask slot is an explicit absence marker
// so consumers can index masks by declaration position.
type DataSource struct {
	Data        *Tile
	Masks       []*Tile
	Spec        SourceSpec
	SourceIndex int
}
