// Package validation sequences the log checks into one verdict.
//
// The structural checks run first. When they fail, the verdict holds only
// the validity group and performance and mechanics are never evaluated.
package validation

import (
	"fmt"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/history"
	"github.com/okian/tiergate/internal/domain/killproof"
	"github.com/okian/tiergate/internal/domain/mechanics"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/internal/domain/performance"
)

// ValidityTitle is the heading of the structural group.
const ValidityTitle = "Checking if log is valid"

// Input is everything one validation reads. Submission must already carry
// its assigned pool, and Prior is the submitter's history as read in the
// same transaction that persisted it.
type Input struct {
	Record     *model.EncounterRecord
	Submission model.Submission
	Prior      []model.Submission

	// Debug runs the mechanic checks in debug mode; Mechanic limits them to
	// one rule.
	Debug    bool
	Mechanic string
}

// Validator runs the checks. It holds no per-call state and is safe for
// concurrent use.
type Validator struct {
	tracker     *history.Tracker
	performance *performance.Evaluator
	mechanics   *mechanics.Evaluator
	totalBosses int
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithTracker sets the structural checks.
func WithTracker(t *history.Tracker) Option {
	return func(v *Validator) {
		if t != nil {
			v.tracker = t
		}
	}
}

// WithPerformance sets the performance evaluator.
func WithPerformance(e *performance.Evaluator) Option {
	return func(v *Validator) {
		if e != nil {
			v.performance = e
		}
	}
}

// WithMechanics sets the mechanic evaluator.
func WithMechanics(e *mechanics.Evaluator) Option {
	return func(v *Validator) {
		if e != nil {
			v.mechanics = e
		}
	}
}

// WithTotalBossCount sets the boss count used by killproof checks.
func WithTotalBossCount(n int) Option {
	return func(v *Validator) {
		v.totalBosses = n
	}
}

// New creates a Validator. Unset stages use their defaults and an empty
// mechanic table.
func New(opts ...Option) *Validator {
	v := &Validator{
		tracker:     history.NewTracker(),
		performance: performance.NewEvaluator(),
		mechanics:   mechanics.NewEvaluator(nil),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate produces the verdict for one submitted log.
func (v *Validator) Validate(in Input) (*feedback.Collection, error) {
	if err := checkRecord(in.Record); err != nil {
		return nil, err
	}

	c := feedback.NewCollection()
	valid := feedback.NewGroup(ValidityTitle)
	c.AddGroup(valid)

	fbs, err := v.tracker.Check(in.Record, in.Submission, in.Prior)
	if err != nil {
		return nil, fmt.Errorf("structural checks: %w", err)
	}
	valid.Add(fbs...)
	if valid.Severity() == feedback.Error {
		return c, nil
	}

	perf, err := v.performance.Evaluate(in.Record, in.Submission.AccountName)
	if err != nil {
		return nil, fmt.Errorf("performance checks: %w", err)
	}
	c.AddGroup(perf)

	mech, err := v.mechanics.Evaluate(in.Record, in.Submission.AccountName,
		mechanics.WithDebug(in.Debug), mechanics.WithOnly(in.Mechanic))
	if err != nil {
		return nil, fmt.Errorf("mechanic checks: %w", err)
	}
	c.AddGroup(mech)
	return c, nil
}

// Killproof evaluates a defeated-boss set against the configured boss count.
func (v *Validator) Killproof(defeated []string, tier int) (*feedback.Group, error) {
	return killproof.Evaluate(defeated, tier, v.totalBosses)
}

// TotalBossCount returns the boss count used by Killproof.
func (v *Validator) TotalBossCount() int {
	return v.totalBosses
}

func checkRecord(rec *model.EncounterRecord) error {
	if rec == nil || len(rec.Players) == 0 {
		return fmt.Errorf("%w: no players", ErrMalformedRecord)
	}
	for _, p := range rec.Players {
		if len(p.Defenses) == 0 {
			return fmt.Errorf("%w: player %q has no defenses", ErrMalformedRecord, p.Account)
		}
	}
	return nil
}
