package logsource

import "errors"

// Sentinel kinds for log source errors.
var (
	ErrFetch  = errors.New("fetch log failed")
	ErrDecode = errors.New("decode log failed")
)
