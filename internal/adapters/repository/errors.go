package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound  = errors.New("submission not found")
	ErrExists    = errors.New("submission already exists")
	ErrConflict  = errors.New("concurrent submission update, retry the submission")
	ErrOpenStore = errors.New("open store failed")
)
