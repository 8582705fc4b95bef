// Package performance checks in-fight statistics of a log: survival, downs,
// forbidden buffs, healer count and consumables.
package performance

import (
	"fmt"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
)

// Title is the heading of the performance group.
const Title = "Checking performance"

// Buff and item ids read from Elite Insights logs.
const (
	BuffBloodMagic     = 29726
	BuffEmboldened     = 68087
	BuffHealerOffRole  = 21751
	BuffDiminished     = 46668
	BuffMalnourished   = 46587
	ItemRepairCanister = 9283
)

// Consumable thresholds.
const (
	MaxRefreshGapUptime = 25.0
	PrebuffWindowMs     = 10000
	MinPrebuffs         = 2
)

// Defaults for Config.
const (
	DefaultMaxPlayerDowns = 1
	DefaultMaxSquadDowns  = 9
	DefaultMaxSquadDeaths = 2
	DefaultMaxHealers     = 2
)

// Config holds the numeric thresholds.
type Config struct {
	MaxPlayerDowns int
	MaxSquadDowns  int
	MaxSquadDeaths int
	MaxHealers     int
	// HealerExceptionProfession healers carrying BuffHealerOffRole are not
	// counted.
	HealerExceptionProfession string
}

// DefaultConfig returns the guild's standard thresholds.
func DefaultConfig() Config {
	return Config{
		MaxPlayerDowns:            DefaultMaxPlayerDowns,
		MaxSquadDowns:             DefaultMaxSquadDowns,
		MaxSquadDeaths:            DefaultMaxSquadDeaths,
		MaxHealers:                DefaultMaxHealers,
		HealerExceptionProfession: "Tempest",
	}
}

// BossLookup resolves the boss-table row of an encounter.
type BossLookup interface {
	Boss(encounterID int) (model.Boss, bool)
}

// Evaluator runs the performance rules.
type Evaluator struct {
	cfg    Config
	bosses BossLookup
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithConfig replaces the thresholds.
func WithConfig(cfg Config) Option {
	return func(e *Evaluator) {
		e.cfg = cfg
	}
}

// WithBosses enables per-encounter healer limits.
func WithBosses(b BossLookup) Option {
	return func(e *Evaluator) {
		e.bosses = b
	}
}

// NewEvaluator creates an Evaluator with DefaultConfig.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every rule; none of them short-circuits another.
func (e *Evaluator) Evaluate(rec *model.EncounterRecord, account string) (*feedback.Group, error) {
	me, ok := rec.FindPlayer(account)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotInLog, account)
	}
	g := feedback.NewGroup(Title)

	if !rec.Success {
		g.Add(feedback.Errorf("Boss was not killed"))
	}

	def, _ := me.FullFight()
	if def.DeadCount > 0 {
		g.Add(feedback.Errorf("You've died. You must be alive at the end of the fight."))
	}
	if def.DownCount > e.cfg.MaxPlayerDowns {
		g.Add(feedback.Errorf("You went down %d time(s), at most %d allowed.", def.DownCount, e.cfg.MaxPlayerDowns))
	}

	var squadDowns, squadDeaths int
	var bloodMagic, emboldened bool
	for _, p := range rec.Players {
		d, _ := p.FullFight()
		squadDowns += d.DownCount
		squadDeaths += d.DeadCount
		bloodMagic = bloodMagic || p.HasBuff(BuffBloodMagic)
		emboldened = emboldened || p.HasBuff(BuffEmboldened)
	}
	if squadDowns > e.cfg.MaxSquadDowns {
		g.Add(feedback.Errorf("Your squad has too many downs. (%d, max %d)", squadDowns, e.cfg.MaxSquadDowns))
	}
	if squadDeaths > e.cfg.MaxSquadDeaths {
		g.Add(feedback.Errorf("Your squad has too many deaths. (%d, max %d)", squadDeaths, e.cfg.MaxSquadDeaths))
	}
	if bloodMagic {
		g.Add(feedback.Errorf("We do not allow logs with a Blood Magic Necromancer present."))
	}
	if emboldened {
		g.Add(feedback.Errorf("We do not allow logs with Emboldened Mode active."))
	}

	healers, limit := e.Healers(rec), e.healerLimit(rec.EncounterID)
	if healers > limit {
		g.Add(feedback.Warningf("Your squad has %d healers, at most %d expected.", healers, limit))
	}

	g.Add(CheckFood(me)...)
	return g, nil
}

// Healers counts the squad's healers, leaving out exception-profession
// players who carry the off-role buff.
func (e *Evaluator) Healers(rec *model.EncounterRecord) int {
	n := 0
	for _, p := range rec.Players {
		if p.Healing != model.HealerRank {
			continue
		}
		if e.cfg.HealerExceptionProfession != "" && p.Profession == e.cfg.HealerExceptionProfession && p.HasBuff(BuffHealerOffRole) {
			continue
		}
		n++
	}
	return n
}

func (e *Evaluator) healerLimit(encounterID int) int {
	if e.bosses != nil {
		if b, ok := e.bosses.Boss(encounterID); ok && b.MaxHealers > 0 {
			return b.MaxHealers
		}
	}
	return e.cfg.MaxHealers
}

// CheckFood checks the player's consumables. Repair canisters are ignored.
func CheckFood(p model.Player) []feedback.Feedback {
	used, prebuffs := 0, 0
	for _, c := range p.Consumables {
		if c.ID == ItemRepairCanister {
			continue
		}
		used++
		if c.Time < PrebuffWindowMs {
			prebuffs++
		}
	}
	if used == 0 {
		return []feedback.Feedback{feedback.Errorf("You did not use any food or utility.")}
	}

	var out []feedback.Feedback
	if up, ok := p.Uptime(BuffDiminished); ok && up >= MaxRefreshGapUptime {
		out = append(out, feedback.Errorf("You did not keep your utility refreshed. (Diminished %.1f%%)", up))
	}
	if up, ok := p.Uptime(BuffMalnourished); ok && up >= MaxRefreshGapUptime {
		out = append(out, feedback.Errorf("You did not keep your food refreshed. (Malnourished %.1f%%)", up))
	}
	if prebuffs < MinPrebuffs {
		out = append(out, feedback.Errorf("You did not start the fight with food and utility active."))
	}
	return out
}
