package tasks

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/golang/geo/r2"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/catalog"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/features"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/grid"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/metrics"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Arbitrary generates one task per (feature, time period) for a region
// that is not part of a grid. A nil feature list is the whole-region
// sentinel: a single task per period with spatial id "(none)".
type Arbitrary struct {
	region        *config.InputRegion
	filterProduct *config.FilterProduct
	storage       config.Storage
	features      []*features.Feature
	logger        *slog.Logger
}

var _ Generator = (*Arbitrary)(nil)

// NewArbitrary builds an arbitrary-region generator. features may be nil
// for a whole-region run.
func NewArbitrary(region *config.InputRegion, storage config.Storage, filterProduct *config.FilterProduct, feats []*features.Feature) *Arbitrary {
	return &Arbitrary{
		region:        region,
		filterProduct: filterProduct,
		storage:       storage,
		features:      feats,
		logger:        slog.With("component", "arbitrary-task-generator"),
	}
}

// Generate walks features × date ranges, building one task per pair from
// the source specs. Tasks that match no sources are discarded silently;
// tasks that do are passed through the temporal filter before being
// yielded.
func (a *Arbitrary) Generate(ctx context.Context, cat catalog.Catalog, specs []domain.SourceSpec, dateRanges []domain.TimePeriod) iter.Seq2[*domain.StatsTask, error] {
	feats := a.features
	if len(feats) == 0 {
		// Input region not from a shapefile: single whole-region pass.
		feats = []*features.Feature{nil}
	}

	return func(yield func(*domain.StatsTask, error) bool) {
		for _, feature := range feats {
			featureID := "(none)"
			if feature != nil && feature.ID != "" {
				featureID = feature.ID
			}

			for _, period := range dateRanges {
				a.logger.Info("making output product tasks",
					"period", period.String(), "feature", featureID)

				task, err := a.buildTask(ctx, cat, specs, feature, featureID, period)
				if err != nil {
					yield(nil, err)
					return
				}
				if len(task.Sources) == 0 {
					continue
				}
				if a.filterProduct != nil && a.filterProduct.Method != "" {
					if err := applyFilterProduct(task, a.filterProduct, feature, period, a.logger); err != nil {
						yield(nil, err)
						return
					}
					if len(task.Sources) == 0 {
						continue
					}
				}
				metrics.TasksGenerated.WithLabelValues("arbitrary").Inc()
				a.logger.Info("created task", "period", period.String(), "feature", featureID)
				if !yield(task, nil) {
					return
				}
			}
		}
	}
}

func (a *Arbitrary) buildTask(ctx context.Context, cat catalog.Catalog, specs []domain.SourceSpec, feature *features.Feature, featureID string, period domain.TimePeriod) (*domain.StatsTask, error) {
	geobox, err := a.regionGeobox(feature)
	if err != nil {
		return nil, err
	}
	task := domain.NewStatsTask(period, domain.FeatureSpatialID(featureID), geobox)

	for sourceIndex, spec := range specs {
		epRange, ok := effectiveRange(spec, period)
		if !ok {
			a.logger.Info("datasets not included for spec and period",
				"product", spec.Product, "period", period.String())
			continue
		}

		data, err := a.makeTile(ctx, cat, spec.Product, spec.SourceFilter, epRange, spec.EffectiveGroupBy(), geobox)
		if err != nil {
			return nil, err
		}
		if len(data.Sources) == 0 {
			a.logger.Info("no datasets matched for product", "product", spec.Product)
			continue
		}

		masks := make([]*domain.Tile, len(spec.Masks))
		for i, mask := range spec.Masks {
			tile, err := a.makeTile(ctx, cat, mask.Product, "", epRange, spec.EffectiveGroupBy(), geobox)
			if err != nil {
				return nil, err
			}
			if len(tile.Sources) > 0 {
				masks[i] = tile
			}
		}

		task.AddSource(&domain.DataSource{
			Data:        data,
			Masks:       masks,
			Spec:        spec,
			SourceIndex: sourceIndex,
		})
	}
	return task, nil
}

// makeTile queries one product over the region/feature footprint and
// groups the matches into a time-indexed tile on the task's geobox.
func (a *Arbitrary) makeTile(ctx context.Context, cat catalog.Catalog, product, sourceFilter string, period domain.TimePeriod, groupBy domain.GroupBy, geobox domain.Geobox) (*domain.Tile, error) {
	extent := geobox.Extent
	datasets, err := cat.FindDatasets(ctx, catalog.Query{
		Product:      product,
		Time:         period,
		Extent:       &extent,
		SourceFilter: sourceFilter,
	})
	if err != nil {
		return nil, err
	}
	slices, ungrouped := catalog.GroupDatasets(datasets, groupBy)
	if len(ungrouped) > 0 {
		a.logger.Warn("datasets failed to group", "product", product, "count", len(ungrouped))
	}
	return &domain.Tile{Sources: slices, Geobox: geobox}, nil
}

// regionGeobox resolves the task's pixel grid: the feature footprint when
// present, otherwise the region descriptor's geometry or lat/lon bounds.
func (a *Arbitrary) regionGeobox(feature *features.Feature) (domain.Geobox, error) {
	res, err := grid.ResolutionFor(a.storage)
	if err != nil {
		return domain.Geobox{}, err
	}
	extent, err := a.regionExtent(feature)
	if err != nil {
		return domain.Geobox{}, err
	}
	return domain.GeoboxFromExtent(extent, a.storage.CRS, res[1], res[0]), nil
}

func (a *Arbitrary) regionExtent(feature *features.Feature) (r2.Rect, error) {
	if feature != nil {
		return feature.Extent, nil
	}
	if a.region != nil {
		if a.region.Geometry != nil {
			return features.GeometryExtent(a.region.Geometry)
		}
		if len(a.region.Longitude) == 2 && len(a.region.Latitude) == 2 {
			return r2.RectFromPoints(
				r2.Point{X: a.region.Longitude[0], Y: a.region.Latitude[0]},
				r2.Point{X: a.region.Longitude[1], Y: a.region.Latitude[1]},
			), nil
		}
	}
	return r2.Rect{}, fmt.Errorf("input region has no resolvable spatial bounds")
}

// Close is a no-op; the arbitrary generator keeps no cross-period state.
func (a *Arbitrary) Close() {}
