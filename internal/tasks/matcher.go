// Package tasks implements the task generation engine: the source/mask
// matcher, the gridded and arbitrary-region generators, and the secondary
// temporal filtering pass.
package tasks

import (
	"context"
	"log/slog"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/catalog"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/grid"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// matchRequest is one batched primary + masks query over the grid.
type matchRequest struct {
	Spec   domain.SourceSpec
	Time   domain.TimePeriod
	Extent *r2.Rect
	// CellIndex restricts matching to a single grid cell when iterating an
	// explicit tile list.
	CellIndex *grid.TileIndex
}

// matchResult carries the per-tile primary tiles, the per-mask per-tile
// tiles aligned to them, and the count of mask datasets that could not be
// aligned to any primary tile.
type matchResult struct {
	Data      map[grid.TileIndex]*domain.Tile
	Masks     []map[grid.TileIndex]*domain.Tile
	Unmatched int
}

// matchProducts retrieves the primary product and every declared mask
// product in one batched pass and aligns mask tiles to primary tile keys by
// spatial tile index. Unmatched mask datasets are counted, not fatal.
func matchProducts(ctx context.Context, cat catalog.Catalog, spec *grid.GridSpec, req matchRequest, logger *slog.Logger) (*matchResult, error) {
	groupBy := req.Spec.EffectiveGroupBy()

	data, err := queryProductTiles(ctx, cat, spec, catalog.Query{
		Product:      req.Spec.Product,
		Time:         req.Time,
		Extent:       req.Extent,
		SourceFilter: req.Spec.SourceFilter,
	}, groupBy, req.CellIndex, logger)
	if err != nil {
		return nil, err
	}

	result := &matchResult{Data: data, Masks: make([]map[grid.TileIndex]*domain.Tile, len(req.Spec.Masks))}
	for i, mask := range req.Spec.Masks {
		tiles, err := queryProductTiles(ctx, cat, spec, catalog.Query{
			Product: mask.Product,
			Time:    req.Time,
			Extent:  req.Extent,
		}, groupBy, req.CellIndex, logger)
		if err != nil {
			return nil, err
		}
		result.Masks[i] = tiles
		for idx, tile := range tiles {
			if _, ok := data[idx]; ok {
				continue
			}
			n := len(tile.Datasets())
			result.Unmatched += n
			logger.Warn("mask datasets not matched to any primary tile",
				"product", mask.Product, "tile", idx.String(), "count", n)
		}
	}
	return result, nil
}

// queryProductTiles finds datasets for one product and buckets them into
// per-tile, time-grouped tiles. A dataset footprint spanning several cells
// contributes to each of them.
func queryProductTiles(ctx context.Context, cat catalog.Catalog, spec *grid.GridSpec, q catalog.Query, groupBy domain.GroupBy, cellIndex *grid.TileIndex, logger *slog.Logger) (map[grid.TileIndex]*domain.Tile, error) {
	if cellIndex != nil {
		geobox := spec.TileGeobox(*cellIndex)
		extent := geobox.Extent
		q.Extent = &extent
	}
	datasets, err := cat.FindDatasets(ctx, q)
	if err != nil {
		return nil, err
	}

	perTile := map[grid.TileIndex][]domain.Dataset{}
	for _, ds := range datasets {
		for _, idx := range spec.TilesOverlapping(ds.Extent) {
			if cellIndex != nil && idx != *cellIndex {
				continue
			}
			perTile[idx] = append(perTile[idx], ds)
		}
	}

	tiles := make(map[grid.TileIndex]*domain.Tile, len(perTile))
	for idx, group := range perTile {
		slices, ungrouped := catalog.GroupDatasets(group, groupBy)
		if len(ungrouped) > 0 {
			logger.Warn("datasets failed to group", "product", q.Product, "tile", idx.String(), "count", len(ungrouped))
		}
		if len(slices) == 0 {
			continue
		}
		tiles[idx] = &domain.Tile{Sources: slices, Geobox: spec.TileGeobox(idx)}
	}
	return tiles, nil
}

// sortedTileIndexes returns map keys in x-major ascending order so task
// emission is deterministic.
func sortedTileIndexes[M any](tiles map[grid.TileIndex]M) []grid.TileIndex {
	out := make([]grid.TileIndex, 0, len(tiles))
	for idx := range tiles {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}
