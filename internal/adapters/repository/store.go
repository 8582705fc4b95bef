// Package repository persists submissions and their verdicts.
package repository

import (
	"context"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
)

// Store provides read/write access to submissions.
type Store interface {
	// Create inserts a new submission. The caller sets ID and timestamps.
	Create(ctx context.Context, sub model.Submission) error

	// Get returns a submission. Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) (model.Submission, error)

	// ListBySubmitter returns every submission of a submitter, oldest first,
	// regardless of status.
	ListBySubmitter(ctx context.Context, submitterID string) ([]model.Submission, error)

	// AssignPool persists the encounter and pool of a submission and reads
	// the submitter's submissions in the same serializable transaction, so
	// the history always includes the new assignment. Serialization failures
	// return ErrConflict.
	AssignPool(ctx context.Context, id string, encounterID int, pool model.BossPool) (model.Submission, []model.Submission, error)

	// SaveVerdict stores the outcome of a validation run.
	SaveVerdict(ctx context.Context, id string, status model.Status, message string, verdict *feedback.Collection) error

	// UpdateStatus applies a reviewer decision.
	UpdateStatus(ctx context.Context, id string, status model.Status) error

	// ListUnvalidated returns pending submissions that never received a
	// verdict, oldest first.
	ListUnvalidated(ctx context.Context) ([]model.Submission, error)

	// CountByStatus returns the number of submissions per status.
	CountByStatus(ctx context.Context) (map[model.Status]int, error)

	Ping(ctx context.Context) error
	Close() error
}
