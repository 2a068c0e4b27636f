package shared

import "errors"

// Domain sentinels. Packages wrap them so callers and the JSON layer can
// classify failures with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)
