// Package metrics registers the Prometheus instruments the task generators
// and output drivers report into.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksGenerated counts yielded stats tasks, labelled by generator kind.
	TasksGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agdc_stats",
		Name:      "tasks_generated_total",
		Help:      "Stats tasks yielded by the task generators.",
	}, []string{"generator"})

	// UnmatchedDatasets counts mask datasets that could not be aligned to
	// any primary tile. Logged as warnings, never fatal.
	UnmatchedDatasets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agdc_stats",
		Name:      "unmatched_mask_datasets_total",
		Help:      "Mask datasets returned by the catalog but not alignable to a primary tile.",
	})

	// OutputsCommitted counts output files atomically renamed into place.
	OutputsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agdc_stats",
		Name:      "outputs_committed_total",
		Help:      "Output files committed to their final path.",
	}, []string{"driver"})

	// OutputsDiscarded counts output files abandoned at their temp path.
	OutputsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agdc_stats",
		Name:      "outputs_discarded_total",
		Help:      "Output files discarded after an unsuccessful task.",
	}, []string{"driver"})

	// BytesWritten counts payload bytes written through output drivers.
	BytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agdc_stats",
		Name:      "output_bytes_written_total",
		Help:      "Array bytes written into output files.",
	}, []string{"driver"})
)
