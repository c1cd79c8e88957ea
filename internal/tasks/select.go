package tasks

import (
	"log/slog"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/features"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/grid"
)

// Select picks the task generator matching the configured input region:
// no region means the full gridded extent; a geometry or tile list keeps
// gridded output restricted to it; a vector file produces either
// per-feature arbitrary-region tasks or a gridded boundary run; anything
// else is a single ungridded region.
func Select(region *config.InputRegion, storage config.Storage, filterProduct *config.FilterProduct) (Generator, error) {
	logger := slog.With("component", "task-generator-select")

	switch {
	case region.IsEmpty():
		logger.Info("no input region specified, generating full spatial region, gridded files")
		return NewGridded(storage)

	case region.Geometry != nil:
		// A large, multi-tile region described inline. Output is per tile.
		extent, err := features.GeometryExtent(region.Geometry)
		if err != nil {
			return nil, err
		}
		opts := []GriddedOption{WithGeopolygon(extent)}
		if len(region.Tiles) > 0 {
			opts = append(opts, WithTileIndexes(tileIndexes(region.Tiles)))
		}
		return NewGridded(storage, opts...)

	case len(region.Tile) == 2:
		return NewGridded(storage, WithTileIndexes([]grid.TileIndex{{X: region.Tile[0], Y: region.Tile[1]}}))

	case len(region.Tiles) > 0:
		return NewGridded(storage, WithTileIndexes(tileIndexes(region.Tiles)))

	case region.FromFile != "":
		logger.Info("input spatial region specified by file", "path", region.FromFile)
		if region.FeatureID != "" || (region.Gridded != nil && !*region.Gridded) {
			logger.Info("generating tasks based on feature polygons")
			feats, err := features.ReadFeatures(region.FromFile, region.FeatureID)
			if err != nil {
				return nil, err
			}
			ptrs := make([]*features.Feature, len(feats))
			for i := range feats {
				ptrs[i] = &feats[i]
			}
			return NewArbitrary(region, storage, filterProduct, ptrs), nil
		}
		logger.Info("generating tasks based on grid")
		extent, err := features.BoundaryExtent(region.FromFile)
		if err != nil {
			return nil, err
		}
		return NewGridded(storage, WithGeopolygon(extent))

	default:
		logger.Info("generating statistics for an ungridded input region, output as a single file")
		return NewArbitrary(region, storage, filterProduct, nil), nil
	}
}

func tileIndexes(pairs [][]int) []grid.TileIndex {
	out := make([]grid.TileIndex, 0, len(pairs))
	for _, p := range pairs {
		if len(p) == 2 {
			out = append(out, grid.TileIndex{X: p[0], Y: p[1]})
		}
	}
	return out
}
