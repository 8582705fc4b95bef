package mechanics

import "errors"

// Sentinel kinds for mechanic errors.
var (
	ErrAccountNotInLog = errors.New("account not found in log")
)
