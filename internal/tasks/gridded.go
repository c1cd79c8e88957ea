package tasks

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/golang/geo/r2"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/catalog"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/grid"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/metrics"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Generator lazily produces stats tasks for a set of source specs and date
// ranges. A catalog failure terminates the sequence with an error; it is
// fatal to the run. Close performs teardown reporting and must be called
// once generation is finished.
type Generator interface {
	Generate(ctx context.Context, cat catalog.Catalog, specs []domain.SourceSpec, dateRanges []domain.TimePeriod) iter.Seq2[*domain.StatsTask, error]
	Close()
}

// Gridded generates one task per (grid tile, time period). The spatial
// scope is either an explicit tile-index list or every tile the matcher
// discovers, optionally restricted to a geopolygon extent.
type Gridded struct {
	spec        *grid.GridSpec
	geopolygon  *r2.Rect
	tileIndexes []grid.TileIndex
	logger      *slog.Logger

	totalUnmatched int
}

var _ Generator = (*Gridded)(nil)

// GriddedOption configures a Gridded generator.
type GriddedOption func(*Gridded)

// WithGeopolygon restricts matching to tiles overlapping the extent.
func WithGeopolygon(extent r2.Rect) GriddedOption {
	return func(g *Gridded) { g.geopolygon = &extent }
}

// WithTileIndexes restricts generation to an explicit cell list.
func WithTileIndexes(indexes []grid.TileIndex) GriddedOption {
	return func(g *Gridded) { g.tileIndexes = indexes }
}

// NewGridded derives the grid from the storage configuration and returns a
// gridded generator. Fails with ConfigurationError when tile_size is
// absent.
func NewGridded(storage config.Storage, opts ...GriddedOption) (*Gridded, error) {
	spec, err := grid.NewGridSpec(storage)
	if err != nil {
		return nil, err
	}
	g := &Gridded{spec: spec, logger: slog.With("component", "gridded-task-generator")}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GridSpec exposes the derived tiling scheme.
func (g *Gridded) GridSpec() *grid.GridSpec { return g.spec }

// Generate walks date ranges in caller order and, within each, every
// spatial unit, yielding one task per tile that matched any source.
func (g *Gridded) Generate(ctx context.Context, cat catalog.Catalog, specs []domain.SourceSpec, dateRanges []domain.TimePeriod) iter.Seq2[*domain.StatsTask, error] {
	return func(yield func(*domain.StatsTask, error) bool) {
		for _, period := range dateRanges {
			g.logger.Info("making output product tasks", "period", period.String())
			started := time.Now()
			created := 0

			emit := func(tasks []*domain.StatsTask, err error) bool {
				if err != nil {
					yield(nil, err)
					return false
				}
				for _, task := range tasks {
					created++
					metrics.TasksGenerated.WithLabelValues("gridded").Inc()
					if !yield(task, nil) {
						return false
					}
				}
				return true
			}

			if g.tileIndexes != nil {
				stop := false
				for _, idx := range g.tileIndexes {
					g.logger.Debug("task for tile", "tile", idx.String())
					cell := idx
					if !emit(g.collectTasks(ctx, cat, period, specs, &cell)) {
						stop = true
						break
					}
				}
				if stop {
					return
				}
			} else {
				if !emit(g.collectTasks(ctx, cat, period, specs, nil)) {
					return
				}
			}

			if created > 0 {
				g.logger.Info("created tasks for period",
					"count", created, "period", period.String(), "elapsed", time.Since(started).String())
			}
		}
	}
}

// collectTasks accumulates the tasks for one time period. Tasks are keyed
// by tile index and may gather sources from multiple specs; each source may
// be masked by multiple masks.
func (g *Gridded) collectTasks(ctx context.Context, cat catalog.Catalog, period domain.TimePeriod, specs []domain.SourceSpec, cellIndex *grid.TileIndex) ([]*domain.StatsTask, error) {
	byTile := map[grid.TileIndex]*domain.StatsTask{}

	for sourceIndex, spec := range specs {
		epRange, ok := effectiveRange(spec, period)
		if !ok {
			g.logger.Info("datasets not included for spec and period",
				"product", spec.Product, "period", period.String())
			continue
		}

		matched, err := matchProducts(ctx, cat, g.spec, matchRequest{
			Spec:      spec,
			Time:      epRange,
			Extent:    g.geopolygon,
			CellIndex: cellIndex,
		}, g.logger)
		if err != nil {
			return nil, err
		}
		g.totalUnmatched += matched.Unmatched
		metrics.UnmatchedDatasets.Add(float64(matched.Unmatched))

		for _, idx := range sortedTileIndexes(matched.Data) {
			task, ok := byTile[idx]
			if !ok {
				task = domain.NewStatsTask(epRange, domain.CellID(idx.X, idx.Y), g.spec.TileGeobox(idx))
				byTile[idx] = task
			}
			masks := make([]*domain.Tile, len(spec.Masks))
			for i := range spec.Masks {
				masks[i] = matched.Masks[i][idx]
			}
			task.AddSource(&domain.DataSource{
				Data:        matched.Data[idx],
				Masks:       masks,
				Spec:        spec,
				SourceIndex: sourceIndex,
			})
		}
	}

	tasks := make([]*domain.StatsTask, 0, len(byTile))
	for _, idx := range sortedTileIndexes(byTile) {
		tasks = append(tasks, byTile[idx])
	}
	return tasks, nil
}

// Close logs the cumulative unmatched-dataset count if any masks went
// unaligned over the generator's lifetime.
func (g *Gridded) Close() {
	if g.totalUnmatched > 0 {
		g.logger.Warn("source datasets had masks that were not found",
			"total", g.totalUnmatched)
	}
}

// effectiveRange intersects a spec's own time restriction with the current
// date range. ok=false means the spec contributes nothing this period.
func effectiveRange(spec domain.SourceSpec, period domain.TimePeriod) (domain.TimePeriod, bool) {
	if spec.Time == nil {
		return period, true
	}
	return period.Intersect(*spec.Time)
}
