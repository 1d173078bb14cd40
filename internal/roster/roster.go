// Package roster holds the squad model shared by the scoring, routing, and
// merging layers. It answers two questions: who is on the team, and which of
// them is a legal substitution target for the current team mode.
package roster

import (
	"sort"
	"strings"
)

// Role classifies a player's primary job in the side.
type Role string

const (
	RoleFastBowler   Role = "fast_bowler"
	RoleSpinner      Role = "spinner"
	RoleAllRounder   Role = "all_rounder"
	RoleBatter       Role = "batter"
	RoleWicketkeeper Role = "wicketkeeper"
)

// IsBowling reports whether the role is allowed to bowl.
func (r Role) IsBowling() bool {
	switch r {
	case RoleFastBowler, RoleSpinner, RoleAllRounder:
		return true
	default:
		return false
	}
}

// TeamMode indicates which half of the game the advisory engine is
// currently optimizing for.
type TeamMode string

const (
	TeamModeBowling TeamMode = "bowling"
	TeamModeBatting TeamMode = "batting"
)

// Player is a single roster entry.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Unfit  bool   `json:"unfit,omitempty"`
	Active bool   `json:"active,omitempty"`
}

// EligibleFor reports whether the player is a legal substitution target for
// the given team mode. An unfit player is never eligible.
func (p Player) EligibleFor(mode TeamMode) bool {
	if p.Unfit {
		return false
	}
	if mode == TeamModeBowling {
		return p.Role.IsBowling()
	}
	// Everyone on the card bats eventually.
	return true
}

// Roster is an ordered collection of players.
type Roster struct {
	players []Player
}

// New builds a roster from the given players.
func New(players []Player) *Roster {
	cp := make([]Player, len(players))
	copy(cp, players)
	return &Roster{players: cp}
}

// Players returns a copy of the roster entries.
func (r *Roster) Players() []Player {
	cp := make([]Player, len(r.players))
	copy(cp, r.players)
	return cp
}

// Len returns the number of players on the roster.
func (r *Roster) Len() int { return len(r.players) }

// ByID looks a player up by id.
func (r *Roster) ByID(id string) (Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// ByName looks a player up by exact name, case-insensitively.
func (r *Roster) ByName(name string) (Player, bool) {
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Player{}, false
}

// Resolve maps a candidate string (player id, exact name, or name embedded in
// free text) to a roster player. Returns false when nothing matches.
func (r *Roster) Resolve(candidate string) (Player, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return Player{}, false
	}
	if p, ok := r.ByID(candidate); ok {
		return p, true
	}
	if p, ok := r.ByName(candidate); ok {
		return p, true
	}
	return r.FindMentioned(candidate)
}

// FindMentioned scans free text for any roster player's name. Names are tried
// longest first so that "Rohit Sharma Jr" wins over "Rohit Sharma" when both
// are on the card.
func (r *Roster) FindMentioned(text string) (Player, bool) {
	if text == "" || len(r.players) == 0 {
		return Player{}, false
	}
	sorted := make([]Player, len(r.players))
	copy(sorted, r.players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Name) > len(sorted[j].Name)
	})
	lower := strings.ToLower(text)
	for _, p := range sorted {
		if p.Name == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			return p, true
		}
	}
	return Player{}, false
}
