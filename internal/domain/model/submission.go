package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/tiergate/internal/domain/feedback"
)

// BossPool is the quota category an encounter belongs to.
type BossPool string

// Pools. Labels are guild configuration; the identifiers are fixed.
const (
	PoolUnassigned BossPool = ""
	PoolNotAllowed BossPool = "not_allowed"
	Pool1          BossPool = "pool_1"
	Pool2          BossPool = "pool_2"
	Pool3          BossPool = "pool_3"
	Pool4          BossPool = "pool_4"
)

// Pools lists every assignable pool in a stable order.
var Pools = []BossPool{PoolNotAllowed, Pool1, Pool2, Pool3, Pool4}

// ParsePool accepts the identifiers above, case-insensitively, plus the
// short forms "1".."4".
func ParsePool(v string) (BossPool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "not_allowed", "not-allowed", "none":
		return PoolNotAllowed, nil
	case "pool_1", "1":
		return Pool1, nil
	case "pool_2", "2":
		return Pool2, nil
	case "pool_3", "3":
		return Pool3, nil
	case "pool_4", "4":
		return Pool4, nil
	}
	return PoolUnassigned, fmt.Errorf("%w: %q", ErrUnknownPool, v)
}

// Status tracks a submission through review.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAccepted     Status = "accepted"
	StatusDenied       Status = "denied"
	StatusReviewDenied Status = "review_denied"
	StatusClosed       Status = "closed"
	StatusError        Status = "error"
)

// ParseStatus validates a status name.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case StatusPending, StatusAccepted, StatusDenied, StatusReviewDenied, StatusClosed, StatusError:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, v)
}

// Counted reports whether submissions with this status take part in quota
// and duplicate checks. Denied ones never do, and neither do submissions
// that failed before producing a verdict.
func (s Status) Counted() bool {
	switch s {
	case StatusDenied, StatusReviewDenied, StatusError:
		return false
	}
	return true
}

// Submission is one log a player handed in for a tier.
type Submission struct {
	ID          string    `json:"id"`
	SubmitterID string    `json:"submitter_id"`
	AccountName string    `json:"account_name"`
	Tier        int       `json:"tier"`
	Role        string    `json:"role"`
	LogURL      string    `json:"log_url"`
	EncounterID int       `json:"encounter_id"`
	Pool        BossPool  `json:"pool"`
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Verdict is the last validation result; nil until validated.
	Verdict *feedback.Collection `json:"verdict,omitempty"`
}

// Job is what flows through the validation queue.
type Job struct {
	SubmissionID string
	EnqueuedAt   time.Time
}

// SubmissionRequest is what a player hands in.
type SubmissionRequest struct {
	SubmitterID string `json:"submitter_id"`
	AccountName string `json:"account_name"`
	Tier        int    `json:"tier"`
	Role        string `json:"role"`
	LogURL      string `json:"log_url"`
}
