package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for model parsing.
var (
	ErrUnknownPool   = errors.New("unknown boss pool")
	ErrUnknownStatus = errors.New("unknown submission status")
	ErrUnknownScope  = errors.New("unknown mechanic scope")
)

// Boss is one row of the boss table.
type Boss struct {
	Name          string
	EncounterID   int
	AchievementID int
	Pool          BossPool
	Statue        bool
	MaxHealers    int // 0 means the default limit
}

// Scope decides whose occurrences a mechanic rule counts.
type Scope string

const (
	ScopePlayer Scope = "player"
	ScopeSquad  Scope = "squad"
)

// ParseScope validates a scope name.
func ParseScope(v string) (Scope, error) {
	s := Scope(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case ScopePlayer, ScopeSquad:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, v)
}

// MechanicRule caps how often a mechanic may be failed in one encounter.
type MechanicRule struct {
	EncounterID int
	Name        string
	Scope       Scope
	Max         int
}
