package validation

import "errors"

// Sentinel kinds for validation errors.
var (
	ErrMalformedRecord = errors.New("malformed encounter record")
)
