package tasks

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/features"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/filters"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// applyFilterProduct runs the secondary temporal filtering pass over a
// task: collects all source timestamps, delegates to the configured filter
// method, narrows every intersecting data source to the retained
// timestamps and drops the rest. The task's spatial id is overwritten with
// the filter's filename-disambiguation arguments; path templating depends
// on that, so it is preserved behavior rather than a design goal.
func applyFilterProduct(task *domain.StatsTask, fp *config.FilterProduct, feature *features.Feature, period domain.TimePeriod, logger *slog.Logger) error {
	filter, ok := filters.Lookup(fp.Method)
	if !ok {
		return fmt.Errorf("unknown filter_product method %q", fp.Method)
	}

	allTimes := task.SourceTimestamps()
	extraArgs, retained, err := filter.Apply(fp, feature, allTimes, period)
	if err != nil {
		return err
	}
	logger.Info("filtered times", "method", fp.Method, "retained", len(retained))

	retainedSet := make(map[string]struct{}, len(retained))
	for _, s := range retained {
		retainedSet[s] = struct{}{}
	}
	keep := func(t time.Time) bool {
		_, ok := retainedSet[t.Format(filter.TimeLayout)]
		return ok
	}

	// Build the kept list instead of deleting during iteration.
	kept := task.Sources[:0:0]
	for _, src := range task.Sources {
		narrowed := src.Data.SelectTimes(keep)
		if len(narrowed.Sources) == 0 {
			continue
		}
		src.Data = narrowed
		logger.Info("source included", "product", src.Spec.Product, "times", len(narrowed.Sources))
		kept = append(kept, src)
	}
	task.Sources = kept

	// The x/y slots are reused for non-spatial disambiguators here.
	task.SpatialID = domain.SpatialID{"x": extraArgs[0], "y": extraArgs[1]}
	return nil
}
