// Package history checks a submission against the player's earlier
// submissions: duplicates, game build and the per-tier pool quotas.
package history

import (
	"fmt"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
)

// Labeler names pools in user-facing messages.
type Labeler interface {
	Label(p model.BossPool) string
}

type rawLabels struct{}

func (rawLabels) Label(p model.BossPool) string { return string(p) }

// Tracker runs the structural checks of a submission.
type Tracker struct {
	minGameBuild int
	labels       Labeler
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithMinGameBuild rejects logs recorded on an older game build.
func WithMinGameBuild(build int) Option {
	return func(t *Tracker) {
		t.minGameBuild = build
	}
}

// WithLabeler sets how pools are named in messages.
func WithLabeler(l Labeler) Option {
	return func(t *Tracker) {
		if l != nil {
			t.labels = l
		}
	}
}

// NewTracker creates a Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{labels: rawLabels{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Counts tallies pools over the counted prior submissions of the same
// submitter and tier, plus the current submission. Priors that were never
// classified are skipped; an unclassified current submission counts as not
// allowed.
func Counts(current model.Submission, prior []model.Submission) map[model.BossPool]int {
	counts := make(map[model.BossPool]int, len(model.Pools))
	for _, p := range model.Pools {
		counts[p] = 0
	}
	for _, s := range relevant(current, prior) {
		if s.Tier != current.Tier || s.Pool == model.PoolUnassigned {
			continue
		}
		counts[s.Pool]++
	}
	if current.Pool == model.PoolUnassigned {
		counts[model.PoolNotAllowed]++
	} else {
		counts[current.Pool]++
	}
	return counts
}

// CheckQuota applies the pool quota of a tier to the counts.
func (t *Tracker) CheckQuota(tier int, counts map[model.BossPool]int) ([]feedback.Feedback, error) {
	if tier < 1 || tier > 3 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	var out []feedback.Feedback
	if counts[model.PoolNotAllowed] > 0 {
		out = append(out, feedback.Errorf("You submitted a log from a boss that is %s", t.labels.Label(model.PoolNotAllowed)))
	}
	switch tier {
	case 2:
		if counts[model.Pool1] > 1 {
			out = append(out, feedback.Errorf("You can only submit one log from %s", t.labels.Label(model.Pool1)))
		}
	case 3:
		if counts[model.Pool1] > 0 || counts[model.Pool2] > 0 {
			out = append(out, feedback.Errorf("You can only submit logs from %s and %s",
				t.labels.Label(model.Pool3), t.labels.Label(model.Pool4)))
		}
		// Only a third POOL_3 log trips this; zero POOL_4 logs alone do not.
		if counts[model.Pool3] > 2 {
			out = append(out, feedback.Errorf("At least one log must be from %s", t.labels.Label(model.Pool4)))
		}
	}
	return out, nil
}

// Check runs every structural check in order: roster membership, game
// build, duplicate boss, duplicate log and pool quota. current must already
// carry its assigned pool.
func (t *Tracker) Check(rec *model.EncounterRecord, current model.Submission, prior []model.Submission) ([]feedback.Feedback, error) {
	if current.Tier < 1 || current.Tier > 3 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTier, current.Tier)
	}

	var out []feedback.Feedback
	if _, ok := rec.FindPlayer(current.AccountName); !ok {
		out = append(out, feedback.Errorf("Could not find account %s in log", current.AccountName))
	}
	if rec.GameBuild < t.minGameBuild {
		out = append(out, feedback.Errorf("Log is from before the latest major balance patch."))
	}

	others := relevant(current, prior)
	if duplicateBoss(rec.EncounterID, current, others) {
		out = append(out, feedback.Errorf("You already submitted a log for this boss."))
	}
	if duplicateLog(current, others) {
		out = append(out, feedback.Errorf("You already submitted this log."))
	}

	quota, err := t.CheckQuota(current.Tier, Counts(current, prior))
	if err != nil {
		return nil, err
	}
	return append(out, quota...), nil
}

// relevant drops the current submission itself, other submitters and
// statuses that do not count.
func relevant(current model.Submission, prior []model.Submission) []model.Submission {
	out := make([]model.Submission, 0, len(prior))
	for _, s := range prior {
		if s.ID == current.ID || s.SubmitterID != current.SubmitterID || !s.Status.Counted() {
			continue
		}
		out = append(out, s)
	}
	return out
}

func duplicateBoss(encounterID int, current model.Submission, others []model.Submission) bool {
	for _, s := range others {
		if s.EncounterID == encounterID && s.Tier == current.Tier && s.Role == current.Role {
			return true
		}
	}
	return false
}

func duplicateLog(current model.Submission, others []model.Submission) bool {
	if current.LogURL == "" {
		return false
	}
	for _, s := range others {
		if s.LogURL == current.LogURL {
			return true
		}
	}
	return false
}
