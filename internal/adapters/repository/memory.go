package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
)

// MemoryStore keeps submissions in process memory. AssignPool runs under
// the write lock, which makes it trivially serializable.
type MemoryStore struct {
	mu          sync.RWMutex
	byID        map[string]*model.Submission
	bySubmitter map[string][]string
	opts        options
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		byID:        make(map[string]*model.Submission),
		bySubmitter: make(map[string][]string),
		opts:        newOptions(opts),
	}
}

func (s *MemoryStore) Create(_ context.Context, sub model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[sub.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, sub.ID)
	}
	cp := sub
	s.byID[sub.ID] = &cp
	s.bySubmitter[sub.SubmitterID] = append(s.bySubmitter[sub.SubmitterID], sub.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[id]
	if !ok {
		return model.Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *sub, nil
}

func (s *MemoryStore) ListBySubmitter(_ context.Context, submitterID string) ([]model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(submitterID), nil
}

func (s *MemoryStore) ListUnvalidated(_ context.Context) ([]model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Submission
	for _, sub := range s.byID {
		if sub.Status == model.StatusPending && sub.Verdict == nil {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// listLocked must be called with s.mu held.
func (s *MemoryStore) listLocked(submitterID string) []model.Submission {
	ids := s.bySubmitter[submitterID]
	out := make([]model.Submission, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) AssignPool(_ context.Context, id string, encounterID int, pool model.BossPool) (model.Submission, []model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[id]
	if !ok {
		return model.Submission{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sub.EncounterID = encounterID
	sub.Pool = pool
	sub.UpdatedAt = s.opts.now()
	return *sub, s.listLocked(sub.SubmitterID), nil
}

func (s *MemoryStore) SaveVerdict(_ context.Context, id string, status model.Status, message string, verdict *feedback.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sub.Status = status
	sub.Message = message
	sub.Verdict = verdict
	sub.UpdatedAt = s.opts.now()
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sub.Status = status
	sub.UpdatedAt = s.opts.now()
	return nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (map[model.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.Status]int)
	for _, sub := range s.byID {
		out[sub.Status]++
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
