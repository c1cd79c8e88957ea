// Command stats-tasks expands a run configuration into statistics tasks
// and reports them. With -dry-run each task is also pushed through the
// noop output driver to validate its output products.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/catalog"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/output"
	"github.com/GeoscienceAustralia/agdc-statistics/internal/tasks"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	configPath := flag.String("config", "", "run configuration YAML (required)")
	dryRun := flag.Bool("dry-run", false, "push each task through the noop output driver")
	asJSON := flag.Bool("json", false, "emit one JSON object per task on stdout")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: stats-tasks -config <run.yaml> [-dry-run] [-json]")
		exitFunc(2)
		return
	}
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}
	if err := run(context.Background(), *configPath, *dryRun, *asJSON); err != nil {
		slog.Error("run failed", "error", err)
		exitFunc(1)
	}
}

func run(ctx context.Context, configPath string, dryRun, asJSON bool) error {
	started := time.Now()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cat, err := catalog.Open(ctx)
	if err != nil {
		return err
	}
	defer cat.Close()

	gen, err := tasks.Select(cfg.InputRegion, cfg.Storage, cfg.FilterProduct)
	if err != nil {
		return err
	}
	defer gen.Close()

	count := 0
	for task, err := range gen.Generate(ctx, cat, cfg.Sources, cfg.DateRanges) {
		if err != nil {
			return err
		}
		attachOutputProducts(task, cfg.OutputProducts)
		count++
		if asJSON {
			if err := printTask(task); err != nil {
				return err
			}
		} else {
			slog.Info("task", "spatial_id", task.SpatialID,
				"period", task.TimePeriod.String(), "sources", len(task.Sources))
		}
		if dryRun {
			if err := dryRunTask(task, cfg.Storage, cfg.Location); err != nil {
				return fmt.Errorf("task %v: %w", task.SpatialID, err)
			}
		}
	}
	slog.Info("task generation finished", "tasks", count, "elapsed", time.Since(started))
	return nil
}

func attachOutputProducts(task *domain.StatsTask, products []domain.OutputProduct) {
	for i := range products {
		task.OutputProducts[products[i].Name] = &products[i]
	}
}

// dryRunTask exercises the full driver lifecycle without touching disk.
func dryRunTask(task *domain.StatsTask, storage config.Storage, outDir string) error {
	drv, err := output.NewDriver("noop", output.Params{Task: task, Storage: storage, OutputDir: outDir})
	if err != nil {
		return err
	}
	_, err = output.Run(drv, func(d output.Driver) error {
		return d.WriteGlobalAttributes(task.TimeAttributes)
	})
	return err
}

func printTask(task *domain.StatsTask) error {
	doc := map[string]any{
		"spatial_id":  task.SpatialID,
		"epoch_start": task.TimePeriod.Start.Format("2006-01-02"),
		"epoch_end":   task.TimePeriod.End.Format("2006-01-02"),
		"products":    task.SourceProductNames(),
		"timestamps":  len(task.SourceTimestamps()),
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(doc)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}
