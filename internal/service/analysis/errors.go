package analysis

import "errors"

// ErrNoFiles is returned when a scan finds nothing to analyze.
var ErrNoFiles = errors.New("no PHP files found")
