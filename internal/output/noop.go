package output

import "fmt"

// noopDriver validates the write sequence without touching storage. Used
// for dry runs and in tests.
type noopDriver struct {
	driverState
	writes int
}

var _ Driver = (*noopDriver)(nil)

// NewNoopDriver builds a driver that discards all data.
func NewNoopDriver(p Params) (Driver, error) {
	return &noopDriver{driverState: newDriverState("noop", p.Task, p.Storage, p.OutputDir, p.Logger)}, nil
}

func (d *noopDriver) OpenOutputFiles() error {
	d.open = true
	return nil
}

func (d *noopDriver) WriteData(product, measurement string, win Window, arr Array) error {
	if err := d.requireOpen(); err != nil {
		return err
	}
	prod, ok := d.task.OutputProducts[product]
	if !ok {
		return fmt.Errorf("no open output for product %q", product)
	}
	if prod.BandIndex(measurement) == 0 {
		return fmt.Errorf("product %q has no measurement %q", product, measurement)
	}
	d.writes++
	return nil
}

func (d *noopDriver) WriteGlobalAttributes(attrs map[string]string) error {
	return d.requireOpen()
}

func (d *noopDriver) CloseFiles(success bool) ([]string, error) {
	if !d.open {
		return nil, ErrNotOpen
	}
	d.open = false
	d.logger.Debug("dry run complete", "writes", d.writes, "success", success)
	return nil, nil
}
