// Package mirror holds the client's local copy of range state and the
// merge rules that keep it in step with the server's push channel.
package mirror

import (
	"strings"

	"github.com/ernie/range-dashboard/internal/domain"
)

// State is one consistent view of the server's state. Lists are replaced
// wholesale on every update and never modified in place, so a State
// returned to a reader stays valid after later updates. Readers must not
// modify the slices.
type State struct {
	Targets       []domain.Target
	Players       []domain.Player
	ScoresTargets []domain.TargetScore
	ScoresPlayers []domain.PlayerScore
	Game          *domain.Game
}

// Target looks up a target by key
func (s State) Target(key domain.TargetKey) (domain.Target, bool) {
	for _, t := range s.Targets {
		if t.Key() == key {
			return t, true
		}
	}
	return domain.Target{}, false
}

// Player looks up a player by id
func (s State) Player(id domain.PlayerID) (domain.Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Player{}, false
}

// ActiveTargets returns the targets selected for the current game
func (s State) ActiveTargets() []domain.Target {
	var out []domain.Target
	for _, t := range s.Targets {
		if t.Active {
			out = append(out, t)
		}
	}
	return out
}

// Change records which parts of the mirror an update replaced
type Change uint8

const (
	ChangeTargets Change = 1 << iota
	ChangePlayers
	ChangeScores
	ChangeGame
	ChangeFeed

	ChangeAll = ChangeTargets | ChangePlayers | ChangeScores | ChangeGame
)

// Has reports whether c includes every bit of other
func (c Change) Has(other Change) bool {
	return other != 0 && c&other == other
}

var changeNames = []struct {
	bit  Change
	name string
}{
	{ChangeTargets, "targets"},
	{ChangePlayers, "players"},
	{ChangeScores, "scores"},
	{ChangeGame, "game"},
	{ChangeFeed, "feed"},
}

// Names lists the parts included in c
func (c Change) Names() []string {
	var names []string
	for _, n := range changeNames {
		if c&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (c Change) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}
