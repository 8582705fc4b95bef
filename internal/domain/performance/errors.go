package performance

import "errors"

// Sentinel kinds for performance errors.
var (
	ErrAccountNotInLog = errors.New("account not found in log")
)
