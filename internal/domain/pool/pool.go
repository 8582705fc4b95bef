// Package pool maps encounters to the quota pools used by the killproof and
// log-submission checks.
package pool

import (
	"github.com/okian/tiergate/internal/domain/model"
)

// Classifier is a read-only lookup built from the boss table.
type Classifier struct {
	byEncounter map[int]model.Boss
	labels      map[model.BossPool]string
}

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithLabels overrides the display names of pools, e.g. "Pool 1" ->
// "Easy bosses". Unlisted pools keep the default label.
func WithLabels(labels map[model.BossPool]string) Option {
	return func(c *Classifier) {
		for p, l := range labels {
			if l != "" {
				c.labels[p] = l
			}
		}
	}
}

// NewClassifier indexes bosses by encounter id. Bosses without an encounter
// id (achievement-only rows such as challenge-mode entries) are skipped, and
// the first row wins when an id repeats.
func NewClassifier(bosses []model.Boss, opts ...Option) *Classifier {
	c := &Classifier{
		byEncounter: make(map[int]model.Boss, len(bosses)),
		labels: map[model.BossPool]string{
			model.PoolNotAllowed: "not allowed",
			model.Pool1:          "Pool 1",
			model.Pool2:          "Pool 2",
			model.Pool3:          "Pool 3",
			model.Pool4:          "Pool 4",
		},
	}
	for _, b := range bosses {
		if b.EncounterID == 0 {
			continue
		}
		if _, ok := c.byEncounter[b.EncounterID]; ok {
			continue
		}
		c.byEncounter[b.EncounterID] = b
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the pool of an encounter. Unknown encounters, and known
// ones without a pool, are not allowed.
func (c *Classifier) Classify(encounterID int) model.BossPool {
	b, ok := c.byEncounter[encounterID]
	if !ok || b.Pool == model.PoolUnassigned {
		return model.PoolNotAllowed
	}
	return b.Pool
}

// Boss returns the table row for an encounter.
func (c *Classifier) Boss(encounterID int) (model.Boss, bool) {
	b, ok := c.byEncounter[encounterID]
	return b, ok
}

// Label returns the display name of a pool.
func (c *Classifier) Label(p model.BossPool) string {
	if l, ok := c.labels[p]; ok {
		return l
	}
	return string(p)
}
