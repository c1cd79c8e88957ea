package output

import (
	"strings"

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// FormatPath resolves a file path template against a task's spatial id and
// time period plus driver-specific extras. Recognized placeholders are
// {x}, {y}, {feature_id}, {epoch_start}, {epoch_end} and any extra keys.
func FormatPath(template string, task *domain.StatsTask, extras map[string]string) string {
	pairs := make([]string, 0, (len(task.SpatialID)+len(extras)+2)*2)
	for k, v := range task.SpatialID {
		pairs = append(pairs, "{"+k+"}", v)
	}
	pairs = append(pairs,
		"{epoch_start}", task.TimePeriod.Start.Format("2006-01-02"),
		"{epoch_end}", task.TimePeriod.End.Format("2006-01-02"),
	)
	for k, v := range extras {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
