// Package filters implements the filter-product predicates used by the
// secondary temporal filtering pass. Each method declares its own timestamp
// string precision; the filtering pass formats source timestamps with the
// same layout before intersecting.
package filters

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/features"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Method names a registered filter predicate.
const (
	ByHydrologicalMonths = "by_hydrological_months"
	ByTideHeight         = "by_tide_height"
)

// Func applies a filter product to the collected source timestamps of one
// task. It returns two filename-disambiguation arguments (reused as the
// task's x/y spatial id slots) and the subset of timestamp strings to
// retain, formatted at the method's precision.
type Func func(cfg *config.FilterProduct, feature *features.Feature, times []time.Time, period domain.TimePeriod) (extraArgs [2]string, retained []string, err error)

// Filter couples a predicate with its timestamp string layout.
type Filter struct {
	Apply Func
	// TimeLayout is the precision retained timestamps are expressed in:
	// day-only for hydrological months, full datetime for tide height.
	TimeLayout string
}

// methods is the fixed, enumerated predicate registry.
var methods = map[string]Filter{
	ByHydrologicalMonths: {Apply: hydrologicalMonths, TimeLayout: "2006-01-02"},
	ByTideHeight:         {Apply: tideHeight, TimeLayout: "2006-01-02T15:04:05"},
}

// Lookup resolves a filter method by name.
func Lookup(method string) (Filter, bool) {
	f, ok := methods[method]
	return f, ok
}

// hydrologicalMonths retains timestamps whose month belongs to the
// configured hydrological month set (cfg.Args["months"], comma-separated
// month numbers).
func hydrologicalMonths(cfg *config.FilterProduct, _ *features.Feature, times []time.Time, _ domain.TimePeriod) ([2]string, []string, error) {
	raw := cfg.Args["months"]
	if raw == "" {
		return [2]string{}, nil, fmt.Errorf("by_hydrological_months requires args.months")
	}
	keep := map[time.Month]bool{}
	var labels []string
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > 12 {
			return [2]string{}, nil, fmt.Errorf("by_hydrological_months: bad month %q", part)
		}
		keep[time.Month(n)] = true
		labels = append(labels, strconv.Itoa(n))
	}
	label := cfg.Args["label"]
	if label == "" {
		label = "hydrological"
	}
	var retained []string
	for _, t := range times {
		if keep[t.Month()] {
			retained = append(retained, t.Format("2006-01-02"))
		}
	}
	return [2]string{label, "months_" + strings.Join(labels, "_")}, dedupe(retained), nil
}

// tideHeight retains timestamps falling in the requested percentage band of
// the feature's modelled tide heights. cfg.Args["tide_range"] is
// "lowest:<pct>" or "highest:<pct>".
func tideHeight(cfg *config.FilterProduct, feature *features.Feature, times []time.Time, _ domain.TimePeriod) ([2]string, []string, error) {
	if feature == nil || feature.ID == "" {
		return [2]string{}, nil, fmt.Errorf("by_tide_height requires a feature")
	}
	obs := cfg.TideObservations[feature.ID]
	if len(obs) == 0 {
		return [2]string{}, nil, fmt.Errorf("by_tide_height: no tide observations for feature %s", feature.ID)
	}
	side, pct, err := parseTideRange(cfg.Args["tide_range"])
	if err != nil {
		return [2]string{}, nil, err
	}

	heights := map[string]float64{}
	ordered := make([]float64, 0, len(obs))
	for _, o := range obs {
		t, err := time.Parse("2006-01-02T15:04:05", o.Time)
		if err != nil {
			return [2]string{}, nil, fmt.Errorf("by_tide_height: bad observation time %q: %w", o.Time, err)
		}
		heights[t.Format("2006-01-02T15:04:05")] = o.Height
		ordered = append(ordered, o.Height)
	}
	sort.Float64s(ordered)
	cut := int(float64(len(ordered)) * pct / 100.0)
	if cut < 1 {
		cut = 1
	}
	var threshold float64
	var inBand func(float64) bool
	if side == "lowest" {
		threshold = ordered[cut-1]
		inBand = func(h float64) bool { return h <= threshold }
	} else {
		threshold = ordered[len(ordered)-cut]
		inBand = func(h float64) bool { return h >= threshold }
	}

	var retained []string
	for _, t := range times {
		key := t.Format("2006-01-02T15:04:05")
		if h, ok := heights[key]; ok && inBand(h) {
			retained = append(retained, key)
		}
	}

	tag := "lot"
	if side == "highest" {
		tag = "hot"
	}
	return [2]string{tag, fmt.Sprintf("perc_%d", int(pct))}, dedupe(retained), nil
}

func parseTideRange(raw string) (side string, pct float64, err error) {
	if raw == "" {
		return "lowest", 25, nil
	}
	parts := strings.SplitN(raw, ":", 2)
	side = strings.TrimSpace(parts[0])
	if side != "lowest" && side != "highest" {
		return "", 0, fmt.Errorf("by_tide_height: tide_range side must be lowest or highest, got %q", side)
	}
	pct = 25
	if len(parts) == 2 {
		pct, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || pct <= 0 || pct > 100 {
			return "", 0, fmt.Errorf("by_tide_height: bad tide_range percentage %q", parts[1])
		}
	}
	return side, pct, nil
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
