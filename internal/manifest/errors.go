package manifest

import (
	"errors"
	"fmt"
)

// ErrLoad matches every LoadError via errors.Is.
var ErrLoad = errors.New("manifest load failed")

// LoadError reports that the primary item table could not be read. The
// previously published snapshot stays active.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load manifest table %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}
