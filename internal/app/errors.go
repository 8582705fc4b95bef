package service

import "errors"

var (
	// ErrInvalidSubmission is returned for a request missing required fields.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrInFlight is returned when the same submitter and log are already being processed.
	ErrInFlight = errors.New("submission already in flight")
	// ErrBackpressure is returned when the validation queue is full.
	ErrBackpressure = errors.New("validation queue full")
	// ErrNotStarted is returned by calls that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidStatus is returned for a status reviewers may not set.
	ErrInvalidStatus = errors.New("invalid status")
)
