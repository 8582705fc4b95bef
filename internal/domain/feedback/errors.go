package feedback

import "errors"

// Sentinel kinds for feedback errors.
var (
	ErrUnknownSeverity = errors.New("unknown severity")
)
