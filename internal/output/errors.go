package output

import (
	"errors"
	"fmt"
)

// ErrNotOpen reports a write attempted before OpenOutputFiles. This is a
// programming-contract violation and fatal.
var ErrNotOpen = errors.New("output: no files opened for writing")

// AlreadyExistsError reports a final output path already present at open
// time. Fatal for the task; sibling tasks are unaffected. Opening never
// silently overwrites a finished output.
type AlreadyExistsError struct {
	Path string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("output file already exists: %s", e.Path)
}

// InvalidExtensionError reports a path template resolving to an extension
// the driver does not accept. Configuration-level and fatal.
type InvalidExtensionError struct {
	Path     string
	Accepted []string
}

func (e *InvalidExtensionError) Error() string {
	return fmt.Sprintf("invalid filename %s: accepted extensions %v", e.Path, e.Accepted)
}

// InconsistentMeasurementsError reports measurements of one product whose
// dtype or nodata differ where the format requires them to match.
type InconsistentMeasurementsError struct {
	Product string
	Field   string
}

func (e *InconsistentMeasurementsError) Error() string {
	return fmt.Sprintf("output product %q: measurements have differing %s; they must all match", e.Product, e.Field)
}
