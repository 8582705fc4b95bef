// Package rules loads the boss table and mechanic rules from a YAML rule
// pack.
package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/tiergate/internal/domain/model"
)

//go:embed rules.yaml
var defaultPack []byte

type bossFile struct {
	Name          string `yaml:"name"`
	EncounterID   int    `yaml:"encounter_id"`
	AchievementID int    `yaml:"achievement_id"`
	Pool          string `yaml:"pool"`
	Statue        bool   `yaml:"statue"`
	MaxHealers    int    `yaml:"max_healers"`
}

type mechanicFile struct {
	EncounterID int    `yaml:"encounter_id"`
	Name        string `yaml:"name"`
	Scope       string `yaml:"scope"`
	Max         int    `yaml:"max"`
}

type packFile struct {
	Pools     map[string]string `yaml:"pools"`
	Bosses    []bossFile        `yaml:"bosses"`
	Mechanics []mechanicFile    `yaml:"mechanics"`
}

// Pack is a validated rule pack.
type Pack struct {
	Bosses    []model.Boss
	Mechanics []model.MechanicRule
	Labels    map[model.BossPool]string
}

// Default returns the embedded rule pack.
func Default() (*Pack, error) {
	return Parse(defaultPack)
}

// Load reads the pack at path, or the embedded one when path is empty.
func Load(path string) (*Pack, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadRules, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule pack.
func Parse(data []byte) (*Pack, error) {
	var f packFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}
	if len(f.Bosses) == 0 {
		return nil, fmt.Errorf("%w: no bosses", ErrInvalidRules)
	}

	p := &Pack{Labels: make(map[model.BossPool]string, len(f.Pools))}
	for k, label := range f.Pools {
		pool, err := model.ParsePool(k)
		if err != nil {
			return nil, fmt.Errorf("%w: pools: %w", ErrInvalidRules, err)
		}
		p.Labels[pool] = label
	}

	for i, b := range f.Bosses {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: boss %d has no name", ErrInvalidRules, i)
		}
		boss := model.Boss{
			Name:          b.Name,
			EncounterID:   b.EncounterID,
			AchievementID: b.AchievementID,
			Statue:        b.Statue,
			MaxHealers:    b.MaxHealers,
		}
		if b.Pool != "" {
			pool, err := model.ParsePool(b.Pool)
			if err != nil {
				return nil, fmt.Errorf("%w: boss %q: %w", ErrInvalidRules, b.Name, err)
			}
			boss.Pool = pool
		}
		if b.MaxHealers < 0 {
			return nil, fmt.Errorf("%w: boss %q: max_healers must not be negative", ErrInvalidRules, b.Name)
		}
		p.Bosses = append(p.Bosses, boss)
	}

	for _, m := range f.Mechanics {
		scope, err := model.ParseScope(m.Scope)
		if err != nil {
			return nil, fmt.Errorf("%w: mechanic %q: %w", ErrInvalidRules, m.Name, err)
		}
		if m.Name == "" || m.EncounterID == 0 {
			return nil, fmt.Errorf("%w: mechanic needs a name and encounter_id", ErrInvalidRules)
		}
		if m.Max < 0 {
			return nil, fmt.Errorf("%w: mechanic %q: max must not be negative", ErrInvalidRules, m.Name)
		}
		p.Mechanics = append(p.Mechanics, model.MechanicRule{
			EncounterID: m.EncounterID,
			Name:        m.Name,
			Scope:       scope,
			Max:         m.Max,
		})
	}
	return p, nil
}

// TotalBossCount is the number of bosses with the statues counted once.
func (p *Pack) TotalBossCount() int {
	statues := 0
	for _, b := range p.Bosses {
		if b.Statue {
			statues++
		}
	}
	if statues > 1 {
		return len(p.Bosses) - statues + 1
	}
	return len(p.Bosses)
}
