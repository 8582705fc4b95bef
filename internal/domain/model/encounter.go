// Package model contains domain models passed between layers.
package model

// EncounterRecord is a parsed combat log as produced by Elite Insights.
// Only the fields the checks read are mapped.
type EncounterRecord struct {
	EncounterID int        `json:"eiEncounterID"`
	FightName   string     `json:"fightName"`
	Success     bool       `json:"success"`
	IsCM        bool       `json:"isCM"`
	GameBuild   int        `json:"gW2Build"`
	Players     []Player   `json:"players"`
	Mechanics   []Mechanic `json:"mechanics"`
}

// Player is one squad member.
type Player struct {
	Account     string       `json:"account"`
	Name        string       `json:"name"`
	Profession  string       `json:"profession"`
	Group       int          `json:"group"`
	Healing     int          `json:"healing"` // healing-role rank, HealerRank marks a healer
	Defenses    []Defense    `json:"defenses"`
	Consumables []Consumable `json:"consumables"`
	BuffUptimes []BuffUptime `json:"buffUptimes"`
}

// HealerRank is the Healing value Elite Insights assigns to healers.
const HealerRank = 10

// Defense holds the per-phase defensive counters; index 0 is the full fight.
type Defense struct {
	DownCount int `json:"downCount"`
	DeadCount int `json:"deadCount"`
}

// Consumable is a food, utility or other consumable activation.
type Consumable struct {
	ID       int   `json:"id"`
	Time     int64 `json:"time"` // ms since fight start
	Stack    int   `json:"stack"`
	Duration int   `json:"duration"`
}

// BuffUptime lists uptime per phase for one buff.
type BuffUptime struct {
	ID       int        `json:"id"`
	BuffData []BuffData `json:"buffData"`
}

// BuffData is the uptime of a buff in one phase, in percent.
type BuffData struct {
	Uptime float64 `json:"uptime"`
}

// Mechanic is a named in-fight event with its occurrences.
type Mechanic struct {
	Name          string          `json:"name"`
	FullName      string          `json:"fullName"`
	Description   string          `json:"description"`
	MechanicsData []MechanicEvent `json:"mechanicsData"`
}

// DisplayName prefers the long name when the log carries one.
func (m Mechanic) DisplayName() string {
	if m.FullName != "" {
		return m.FullName
	}
	return m.Name
}

// MechanicEvent is one occurrence; Actor is the character name.
type MechanicEvent struct {
	Actor string `json:"actor"`
	Time  int64  `json:"time"`
}

// FindPlayer returns the roster entry for an account.
func (r *EncounterRecord) FindPlayer(account string) (Player, bool) {
	for _, p := range r.Players {
		if p.Account == account {
			return p, true
		}
	}
	return Player{}, false
}

// FullFight returns the full-fight defense counters.
func (p Player) FullFight() (Defense, bool) {
	if len(p.Defenses) == 0 {
		return Defense{}, false
	}
	return p.Defenses[0], true
}

// Uptime returns the full-fight uptime of a buff and whether the buff was
// present at all.
func (p Player) Uptime(buffID int) (float64, bool) {
	for _, b := range p.BuffUptimes {
		if b.ID != buffID {
			continue
		}
		if len(b.BuffData) == 0 {
			return 0, true
		}
		return b.BuffData[0].Uptime, true
	}
	return 0, false
}

// HasBuff reports whether the buff appears in the player's uptime list.
func (p Player) HasBuff(buffID int) bool {
	_, ok := p.Uptime(buffID)
	return ok
}
