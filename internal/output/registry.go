package output

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/config"
	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Params carries everything a driver needs to write one task's outputs.
type Params struct {
	Task      *domain.StatsTask
	Storage   config.Storage
	OutputDir string
	Logger    *slog.Logger
}

// Factory constructs a driver for one task.
type Factory func(Params) (Driver, error)

// drivers is the explicit name registry. Registration is static; there is
// no self-registration side channel.
var drivers = map[string]Factory{
	"multivar": NewMultivarDriver,
	"geotiff":  NewGeotiffDriver,
	"envi_bil": NewENVIBILDriver,
	"noop":     NewNoopDriver,
}

// DriverNames lists the registered driver names, sorted.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDriver constructs the named driver, or an error naming the known
// drivers when the name is unregistered.
func NewDriver(name string, p Params) (Driver, error) {
	factory, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown output driver %q (registered: %v)", name, DriverNames())
	}
	return factory(p)
}
