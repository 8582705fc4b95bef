// Package account evaluates the account-level evidence of a tier
// application: API key permissions, masteries and killproof achievements.
package account

import (
	"slices"
	"strings"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/killproof"
	"github.com/okian/tiergate/internal/domain/model"
)

// Group titles.
const (
	KeyTitle       = "API Key"
	CharacterTitle = "Character"
	MasteriesTitle = "Masteries"
)

// RequiredPermissions must all be granted to the applicant's API key.
var RequiredPermissions = []string{"account", "progression", "characters", "builds"}

// TokenInfo is the /v2/tokeninfo response. An invalid key yields only Text.
type TokenInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Text        string   `json:"text,omitempty"`
}

// Invalid reports whether the API rejected the key.
func (t TokenInfo) Invalid() bool {
	return t.ID == "" || strings.Contains(t.Text, "Invalid access token")
}

// Mastery is one entry of /v2/account/masteries.
type Mastery struct {
	ID    int `json:"id"`
	Level int `json:"level"`
}

// Achievement is one entry of /v2/account/achievements.
type Achievement struct {
	ID   int  `json:"id"`
	Done bool `json:"done"`
}

// MasteryRequirement is a mastery track that must reach Level.
type MasteryRequirement struct {
	ID    int
	Level int
	Name  string
}

// RequiredMasteries are the mastery tracks an applicant needs.
var RequiredMasteries = []MasteryRequirement{
	{ID: 8, Level: 5, Name: "Ley Line Gliding"},
	{ID: 18, Level: 2, Name: "Shifting Sands"},
}

// CheckKey checks the API key. An invalid key stops the check.
func CheckKey(info TokenInfo) *feedback.Group {
	g := feedback.NewGroup(KeyTitle)
	if info.Invalid() {
		g.Add(feedback.Errorf("Invalid API Key"))
		return g
	}
	g.Add(feedback.Successf("API Key is valid"))

	for _, perm := range RequiredPermissions {
		if !slices.Contains(info.Permissions, perm) {
			g.Add(feedback.Errorf("API Key is missing '%s' permission", perm))
		}
	}
	if g.Severity() == feedback.Success {
		g.Add(feedback.Successf("API Key permissions are set up correctly"))
	}
	return g
}

// CheckMasteries checks every required mastery track.
func CheckMasteries(masteries []Mastery) *feedback.Group {
	g := feedback.NewGroup(MasteriesTitle)
	for _, req := range RequiredMasteries {
		unlocked := slices.ContainsFunc(masteries, func(m Mastery) bool {
			return m.ID == req.ID && m.Level >= req.Level
		})
		if unlocked {
			g.Add(feedback.Successf("%s is unlocked", req.Name))
		} else {
			g.Add(feedback.Errorf("%s is not unlocked", req.Name))
		}
	}
	return g
}

// CheckCharacter checks that the character belongs to the account.
func CheckCharacter(name string, characters []string) *feedback.Group {
	g := feedback.NewGroup(CharacterTitle)
	if slices.Contains(characters, name) {
		g.Add(feedback.Successf("Character '%s' found", name))
	} else {
		g.Add(feedback.Errorf("Character '%s' doesn't exist", name))
	}
	return g
}

// DefeatedBosses maps completed achievements to boss names. Bosses without
// an achievement id never match.
func DefeatedBosses(achievements []Achievement, bosses []model.Boss) []string {
	done := make(map[int]bool, len(achievements))
	for _, a := range achievements {
		if a.Done {
			done[a.ID] = true
		}
	}
	var out []string
	for _, b := range bosses {
		if b.AchievementID != 0 && done[b.AchievementID] {
			out = append(out, b.Name)
		}
	}
	return out
}

// Application is the evidence handed in for a tier application.
type Application struct {
	Token        TokenInfo     `json:"token_info"`
	Character    string        `json:"character,omitempty"`
	Characters   []string      `json:"characters,omitempty"`
	Masteries    []Mastery     `json:"masteries"`
	Achievements []Achievement `json:"achievements"`
	Tier         int           `json:"tier"`
}

// Evaluate runs the key, character, mastery and killproof checks. A key the
// API rejected stops evaluation after the key group; missing permissions are
// reported and evaluation continues. The character check only runs when a
// character was named.
func Evaluate(app Application, bosses []model.Boss, totalBosses int) (*feedback.Collection, error) {
	c := feedback.NewCollection()
	key := CheckKey(app.Token)
	c.AddGroup(key)
	if app.Token.Invalid() {
		return c, nil
	}
	if app.Character != "" {
		c.AddGroup(CheckCharacter(app.Character, app.Characters))
	}
	c.AddGroup(CheckMasteries(app.Masteries))

	kp, err := killproof.Evaluate(DefeatedBosses(app.Achievements, bosses), app.Tier, totalBosses)
	if err != nil {
		return nil, err
	}
	c.AddGroup(kp)
	return c, nil
}
