// Package killproof decides whether an account's defeated-boss set is enough
// for a tier application.
package killproof

import (
	"fmt"

	"github.com/okian/tiergate/internal/domain/feedback"
)

// Title is the heading of the killproof group.
const Title = "Killproof"

// Statue sub-bosses only count, together, as StatuesName.
const (
	StatueOfDeath    = "Statue of Death"
	StatueOfIce      = "Statue of Ice"
	StatueOfDarkness = "Statue of Darkness"
	StatuesName      = "Statues"
)

// HardestChallenge is the only boss a tier-3 applicant may be missing.
const HardestChallenge = "Harvest Temple CM"

// Thresholds.
const (
	tier1MinBosses     = 5
	tier2MinBosses     = 10
	tier2MaxRestricted = 5
)

// Tier2Restricted are the bosses of which at most tier2MaxRestricted count
// towards the tier-2 total.
var Tier2Restricted = []string{
	"Gorseval the Multifarious",
	"Cairn the Indomitable",
	"Mursaat Overseer",
	"Samarog",
	StatuesName,
	"Whisper of Jormag",
	"Kaineng Overlook",
	"Harvest Temple",
	"Aetherblade Hideout CM",
}

// Collapse deduplicates the names and folds the three statues into one
// entry. A statue never counts on its own, even when only some of the three
// were defeated.
func Collapse(defeated []string) map[string]struct{} {
	set := make(map[string]struct{}, len(defeated))
	for _, name := range defeated {
		set[name] = struct{}{}
	}
	statues := 0
	for _, s := range []string{StatueOfDeath, StatueOfIce, StatueOfDarkness} {
		if _, ok := set[s]; ok {
			statues++
			delete(set, s)
		}
	}
	if statues == 3 {
		set[StatuesName] = struct{}{}
	}
	return set
}

// Evaluate checks the defeated bosses against the rule for tier.
// totalBosses is the boss-table size with the statues collapsed.
// A tier outside 1..3 is a caller error.
func Evaluate(defeated []string, tier int, totalBosses int) (*feedback.Group, error) {
	killed := Collapse(defeated)
	g := feedback.NewGroup(Title)

	switch tier {
	case 1:
		evaluateTier1(g, killed, totalBosses)
	case 2:
		evaluateTier2(g, killed, totalBosses)
	case 3:
		evaluateTier3(g, killed, totalBosses)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	return g, nil
}

func evaluateTier1(g *feedback.Group, killed map[string]struct{}, total int) {
	msg := fmt.Sprintf("You have killed %d/%d different bosses (%d required)", len(killed), total, tier1MinBosses)
	if len(killed) >= tier1MinBosses {
		g.Add(feedback.New(msg, feedback.Success))
		return
	}
	g.Add(feedback.New(msg, feedback.Error))
}

func evaluateTier2(g *feedback.Group, killed map[string]struct{}, total int) {
	restricted := 0
	for _, name := range Tier2Restricted {
		if _, ok := killed[name]; ok {
			restricted++
		}
	}
	counted := len(killed) - restricted + min(restricted, tier2MaxRestricted)
	if counted >= tier2MinBosses {
		g.Add(feedback.Successf("You have killed %d/%d different bosses", len(killed), total))
		return
	}
	g.Add(feedback.Errorf("You have killed %d/%d different bosses. "+
		"Only %d of them count towards the %d required, at most %d restricted bosses are counted. "+
		"Check out the tier guide for more info.",
		len(killed), total, counted, tier2MinBosses, tier2MaxRestricted))
}

func evaluateTier3(g *feedback.Group, killed map[string]struct{}, total int) {
	_, hasHardest := killed[HardestChallenge]
	switch {
	case len(killed) == total:
		g.Add(feedback.Successf("You have killed %d/%d different bosses", len(killed), total))
	case len(killed) == total-1 && !hasHardest:
		g.Add(feedback.Successf("You have killed %d/%d different bosses", len(killed), total))
	default:
		g.Add(feedback.Errorf("You have killed %d/%d different bosses. "+
			"You need to have killed all bosses except %s. Check out the tier guide for more info.",
			len(killed), total, HardestChallenge))
	}
}
