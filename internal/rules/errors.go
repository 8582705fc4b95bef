package rules

import "errors"

// Sentinel kinds for rule pack errors.
var (
	ErrInvalidRules = errors.New("invalid rule pack")
	ErrReadRules    = errors.New("read rule pack failed")
)
