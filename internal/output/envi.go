package output

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// enviDriver writes ENVI band-interleaved-by-line outputs. Pixels are
// staged as a GeoTIFF and converted in place with gdal_translate at
// commit, since the ENVI format needs a sidecar header that tool already
// knows how to emit. A failed conversion is not fatal: the staged
// GeoTIFF is left behind for manual recovery.
type enviDriver struct {
	*geotiffDriver
}

var _ Driver = (*enviDriver)(nil)

// NewENVIBILDriver builds the ENVI BIL driver.
func NewENVIBILDriver(p Params) (Driver, error) {
	return &enviDriver{geotiffDriver: newGeotiffDriver("envi_bil", []string{".bil"}, p)}, nil
}

func (d *enviDriver) CloseFiles(success bool) ([]string, error) {
	var pairs [][2]string
	_ = d.files.walkLeaves(func(leaf *leafHandle) error {
		pairs = append(pairs, [2]string{leaf.tmpPath, leaf.finalPath})
		return nil
	})
	paths, err := d.closeFiles(success, false)
	if !success {
		return paths, err
	}
	for _, pair := range pairs {
		d.convert(pair[0], pair[1])
	}
	return paths, err
}

// convert translates the staged GeoTIFF into an ENVI BIL file and drops
// the intermediate on success.
func (d *enviDriver) convert(tmpPath, finalPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "gdal_translate",
		"-of", "ENVI", "-co", "INTERLEAVE=BIL", tmpPath, finalPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		d.logger.Warn("ENVI conversion failed, staged file kept",
			"path", tmpPath, "error", err, "output", string(out))
		return
	}
	if err := os.Remove(tmpPath); err != nil {
		d.logger.Warn("could not remove staged file", "path", tmpPath, "error", err)
	}
}
