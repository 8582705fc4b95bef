// Package mechanics counts failed boss mechanics against configured caps.
package mechanics

import (
	"fmt"
	"strings"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
)

// Title is the heading of the mechanics group.
const Title = "Checking mechanics"

// Evaluator holds the mechanic rules indexed by encounter.
type Evaluator struct {
	rules map[int][]model.MechanicRule
}

// NewEvaluator indexes rules by encounter id, keeping their order.
func NewEvaluator(rules []model.MechanicRule) *Evaluator {
	e := &Evaluator{rules: make(map[int][]model.MechanicRule)}
	for _, r := range rules {
		e.rules[r.EncounterID] = append(e.rules[r.EncounterID], r)
	}
	return e
}

// Rules returns the rules configured for an encounter.
func (e *Evaluator) Rules(encounterID int) []model.MechanicRule {
	return append([]model.MechanicRule(nil), e.rules[encounterID]...)
}

type runOptions struct {
	debug bool
	only  string
}

// RunOption tunes a single evaluation.
type RunOption func(*runOptions)

// WithDebug reports every rule, and mechanics missing from the log.
func WithDebug(debug bool) RunOption {
	return func(o *runOptions) {
		o.debug = debug
	}
}

// WithOnly limits the evaluation to the rule with this name.
func WithOnly(name string) RunOption {
	return func(o *runOptions) {
		o.only = strings.TrimSpace(name)
	}
}

// Evaluate counts each rule's mechanic in the log. Rules whose mechanic is
// absent from the log are skipped.
func (e *Evaluator) Evaluate(rec *model.EncounterRecord, account string, opts ...RunOption) (*feedback.Group, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	me, ok := rec.FindPlayer(account)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotInLog, account)
	}

	g := feedback.NewGroup(Title)
	for _, rule := range e.rules[rec.EncounterID] {
		if o.only != "" && !strings.EqualFold(rule.Name, o.only) {
			continue
		}
		m, found := find(rec.Mechanics, rule.Name)
		if !found {
			if o.debug {
				g.Add(feedback.Warningf("Could not find mechanic %s in log, check the rule configuration", rule.Name))
			}
			continue
		}

		n := count(m, rule.Scope, me.Name)
		if n > rule.Max {
			who := "You"
			if rule.Scope == model.ScopeSquad {
				who = "Your squad"
			}
			g.Add(feedback.Errorf("%s failed %s %d time(s) (max %d)", who, rule.Name, n, rule.Max))
		}
		if o.debug {
			sev := feedback.Success
			if n > rule.Max {
				sev = feedback.Error
			}
			g.Add(feedback.New(fmt.Sprintf("[debug] %s (%s): %d/%d", rule.Name, rule.Scope, n, rule.Max), sev))
		}
	}
	return g, nil
}

func find(ms []model.Mechanic, name string) (model.Mechanic, bool) {
	for _, m := range ms {
		if m.Name == name || m.FullName == name {
			return m, true
		}
	}
	return model.Mechanic{}, false
}

func count(m model.Mechanic, scope model.Scope, character string) int {
	if scope == model.ScopeSquad {
		return len(m.MechanicsData)
	}
	n := 0
	for _, ev := range m.MechanicsData {
		if ev.Actor == character {
			n++
		}
	}
	return n
}
