package output

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/geo/r2"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

func testTask() *domain.StatsTask {
	period := domain.TimePeriod{
		Start: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	geobox := domain.Geobox{
		CRS:    "EPSG:3577",
		Extent: r2.RectFromPoints(r2.Point{X: 1500000, Y: -4000000}, r2.Point{X: 1500100, Y: -3999900}),
		ResX:   25,
		ResY:   -25,
	}
	task := domain.NewStatsTask(period, domain.CellID(15, -40), geobox)
	task.AddSource(&domain.DataSource{
		Data: &domain.Tile{
			Sources: []domain.TimeSlice{{
				Time:     time.Date(2010, 6, 1, 0, 10, 0, 0, time.UTC),
				Datasets: []domain.Dataset{{ID: "uuid-a", Product: "ls8_nbar"}},
			}},
			Geobox: geobox,
		},
		Spec: domain.SourceSpec{Product: "ls8_nbar"},
	})
	return task
}

func addProduct(task *domain.StatsTask, name, template string, measurements ...domain.Measurement) *domain.OutputProduct {
	prod := &domain.OutputProduct{Name: name, FilePathTemplate: template, Measurements: measurements}
	task.OutputProducts[name] = prod
	return prod
}

func testParams(t *testing.T, task *domain.StatsTask) Params {
	t.Helper()
	return Params{
		Task:      task,
		Storage:   config.Storage{CRS: "EPSG:3577", Chunking: map[string]int{"x": 4, "y": 4}},
		OutputDir: t.TempDir(),
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestNewDriverUnknownName(t *testing.T) {
	_, err := NewDriver("netcdf", testParams(t, testTask()))
	if err == nil {
		t.Fatalf("unknown driver name must fail")
	}
}

func TestNoopLifecycle(t *testing.T) {
	task := testTask()
	addProduct(task, "wofs", "{x}_{y}.tif", domain.Measurement{Name: "count_wet", Dtype: domain.DtypeInt16, Nodata: -1})
	drv, err := NewDriver("noop", testParams(t, task))
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	if err := drv.WriteData("wofs", "count_wet", Window{}, Array{}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("write before open must fail with ErrNotOpen, got %v", err)
	}
	if err := drv.OpenOutputFiles(); err != nil {
		t.Fatalf("OpenOutputFiles: %v", err)
	}
	if err := drv.WriteData("wofs", "count_wet", Window{Width: 1, Height: 1}, Array{Dtype: domain.DtypeInt16, Data: make([]byte, 2)}); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if err := drv.WriteData("wofs", "count_dry", Window{}, Array{}); err == nil {
		t.Fatalf("unknown measurement must fail")
	}
	if _, err := drv.CloseFiles(true); err != nil {
		t.Fatalf("CloseFiles: %v", err)
	}
	if _, err := drv.CloseFiles(true); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("second close must fail with ErrNotOpen, got %v", err)
	}
}

func TestRunClosesWithoutCommitOnError(t *testing.T) {
	task := testTask()
	addProduct(task, "wofs", "{x}_{y}.tif", domain.Measurement{Name: "count_wet", Dtype: domain.DtypeInt16, Nodata: -1})
	drv, err := NewGeotiffDriver(testParams(t, task))
	if err != nil {
		t.Fatalf("NewGeotiffDriver: %v", err)
	}
	boom := errors.New("boom")
	paths, err := Run(drv, func(Driver) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}
	for _, p := range paths {
		if fileExists(p) {
			t.Fatalf("failed run must not commit %s", p)
		}
	}
}

func TestRunClosesOnPanic(t *testing.T) {
	task := testTask()
	addProduct(task, "wofs", "{x}_{y}.tif", domain.Measurement{Name: "count_wet", Dtype: domain.DtypeInt16, Nodata: -1})
	params := testParams(t, task)
	drv, err := NewGeotiffDriver(params)
	if err != nil {
		t.Fatalf("NewGeotiffDriver: %v", err)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("panic must propagate")
			}
		}()
		_, _ = Run(drv, func(Driver) error { panic("mid-write failure") })
	}()
}
