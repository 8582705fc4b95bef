package history

import "errors"

// Sentinel kinds for history errors.
var (
	ErrInvalidTier = errors.New("invalid submission tier")
)
