package killproof

import "errors"

// Sentinel kinds for killproof errors.
var (
	ErrInvalidTier = errors.New("invalid killproof tier")
)
