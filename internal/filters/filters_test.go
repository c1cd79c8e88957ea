package filters

import (
	"testing"
	"time"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/features"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

func mustTime(t *testing.T, layout, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(layout, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return parsed
}

func TestLookupUnknownMethod(t *testing.T) {
	if _, ok := Lookup("by_phase_of_the_moon"); ok {
		t.Fatalf("unknown method must not resolve")
	}
}

func TestHydrologicalMonths(t *testing.T) {
	f, ok := Lookup(ByHydrologicalMonths)
	if !ok {
		t.Fatalf("method not registered")
	}
	cfg := &config.FilterProduct{
		Method: ByHydrologicalMonths,
		Args:   map[string]string{"months": "6, 7", "label": "dry"},
	}
	times := []time.Time{
		mustTime(t, time.RFC3339, "2010-06-05T00:10:00Z"),
		mustTime(t, time.RFC3339, "2010-07-09T00:10:00Z"),
		mustTime(t, time.RFC3339, "2010-12-25T00:10:00Z"),
	}
	extra, retained, err := f.Apply(cfg, nil, times, domain.TimePeriod{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if extra != [2]string{"dry", "months_6_7"} {
		t.Fatalf("extra args: %v", extra)
	}
	if len(retained) != 2 || retained[0] != "2010-06-05" || retained[1] != "2010-07-09" {
		t.Fatalf("retained: %v", retained)
	}
}

func TestHydrologicalMonthsRejectsBadMonth(t *testing.T) {
	f, _ := Lookup(ByHydrologicalMonths)
	cfg := &config.FilterProduct{Args: map[string]string{"months": "13"}}
	if _, _, err := f.Apply(cfg, nil, nil, domain.TimePeriod{}); err == nil {
		t.Fatalf("expected error for month 13")
	}
}

func TestTideHeightLowestBand(t *testing.T) {
	f, ok := Lookup(ByTideHeight)
	if !ok {
		t.Fatalf("method not registered")
	}
	feature := &features.Feature{ID: "17"}
	cfg := &config.FilterProduct{
		Method: ByTideHeight,
		Args:   map[string]string{"tide_range": "lowest:25"},
		TideObservations: map[string][]config.TideObservation{
			"17": {
				{Time: "2010-01-01T00:10:00", Height: -1.8},
				{Time: "2010-02-01T00:10:00", Height: -0.2},
				{Time: "2010-03-01T00:10:00", Height: 0.6},
				{Time: "2010-04-01T00:10:00", Height: 1.4},
			},
		},
	}
	times := []time.Time{
		mustTime(t, "2006-01-02T15:04:05", "2010-01-01T00:10:00"),
		mustTime(t, "2006-01-02T15:04:05", "2010-02-01T00:10:00"),
		mustTime(t, "2006-01-02T15:04:05", "2010-03-01T00:10:00"),
		mustTime(t, "2006-01-02T15:04:05", "2010-04-01T00:10:00"),
	}
	extra, retained, err := f.Apply(cfg, feature, times, domain.TimePeriod{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if extra != [2]string{"lot", "perc_25"} {
		t.Fatalf("extra args: %v", extra)
	}
	if len(retained) != 1 || retained[0] != "2010-01-01T00:10:00" {
		t.Fatalf("lowest quartile must keep only the lowest tide: %v", retained)
	}
}

func TestTideHeightHighestBand(t *testing.T) {
	f, _ := Lookup(ByTideHeight)
	feature := &features.Feature{ID: "17"}
	cfg := &config.FilterProduct{
		Args: map[string]string{"tide_range": "highest:50"},
		TideObservations: map[string][]config.TideObservation{
			"17": {
				{Time: "2010-01-01T00:10:00", Height: -1.8},
				{Time: "2010-02-01T00:10:00", Height: 1.4},
			},
		},
	}
	times := []time.Time{
		mustTime(t, "2006-01-02T15:04:05", "2010-01-01T00:10:00"),
		mustTime(t, "2006-01-02T15:04:05", "2010-02-01T00:10:00"),
	}
	extra, retained, err := f.Apply(cfg, feature, times, domain.TimePeriod{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if extra[0] != "hot" {
		t.Fatalf("extra args: %v", extra)
	}
	if len(retained) != 1 || retained[0] != "2010-02-01T00:10:00" {
		t.Fatalf("highest half must keep the highest tide: %v", retained)
	}
}

func TestTideHeightRequiresObservations(t *testing.T) {
	f, _ := Lookup(ByTideHeight)
	cfg := &config.FilterProduct{}
	if _, _, err := f.Apply(cfg, &features.Feature{ID: "99"}, nil, domain.TimePeriod{}); err == nil {
		t.Fatalf("expected error when no observations exist for the feature")
	}
}
