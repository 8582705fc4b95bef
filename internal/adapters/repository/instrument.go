package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/pkg/metrics"
)

type instrumented struct {
	next    Store
	backend string
}

// Instrument wraps a Store so every call records latency and outcome
// under the given backend label.
func Instrument(s Store, backend string) Store {
	return &instrumented{next: s, backend: backend}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(op, i.backend, float64(time.Since(start).Microseconds())/1000, err)
	if errors.Is(err, ErrConflict) {
		metrics.RecordStoreConflict()
	}
}

func (i *instrumented) Create(ctx context.Context, sub model.Submission) error {
	start := time.Now()
	err := i.next.Create(ctx, sub)
	i.observe("create", start, err)
	return err
}

func (i *instrumented) Get(ctx context.Context, id string) (model.Submission, error) {
	start := time.Now()
	sub, err := i.next.Get(ctx, id)
	i.observe("get", start, err)
	return sub, err
}

func (i *instrumented) ListBySubmitter(ctx context.Context, submitterID string) ([]model.Submission, error) {
	start := time.Now()
	subs, err := i.next.ListBySubmitter(ctx, submitterID)
	i.observe("list_by_submitter", start, err)
	return subs, err
}

func (i *instrumented) AssignPool(ctx context.Context, id string, encounterID int, pool model.BossPool) (model.Submission, []model.Submission, error) {
	start := time.Now()
	cur, history, err := i.next.AssignPool(ctx, id, encounterID, pool)
	i.observe("assign_pool", start, err)
	return cur, history, err
}

func (i *instrumented) SaveVerdict(ctx context.Context, id string, status model.Status, message string, verdict *feedback.Collection) error {
	start := time.Now()
	err := i.next.SaveVerdict(ctx, id, status, message, verdict)
	i.observe("save_verdict", start, err)
	return err
}

func (i *instrumented) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	start := time.Now()
	err := i.next.UpdateStatus(ctx, id, status)
	i.observe("update_status", start, err)
	return err
}

func (i *instrumented) ListUnvalidated(ctx context.Context) ([]model.Submission, error) {
	start := time.Now()
	subs, err := i.next.ListUnvalidated(ctx)
	i.observe("list_unvalidated", start, err)
	return subs, err
}

func (i *instrumented) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	start := time.Now()
	counts, err := i.next.CountByStatus(ctx)
	i.observe("count_by_status", start, err)
	if err == nil {
		for _, s := range []model.Status{
			model.StatusPending, model.StatusAccepted, model.StatusDenied,
			model.StatusReviewDenied, model.StatusClosed, model.StatusError,
		} {
			metrics.UpdateSubmissionsByStatus(string(s), counts[s])
		}
	}
	return counts, err
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
