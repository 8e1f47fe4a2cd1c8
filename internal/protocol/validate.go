package protocol

import (
	"github.com/ernie/range-dashboard/internal/domain"
)

// Validate checks the structural rules for a message's tag. It performs no
// business logic: scores may reference targets or players that are not in
// the current lists.
func Validate(msg Message) error {
	switch m := msg.(type) {
	case Snapshot:
		if err := validateTargets(m.Type(), m.Targets); err != nil {
			return err
		}
		if err := validatePlayers(m.Type(), m.Players); err != nil {
			return err
		}
		return validateScores(m.Type(), m.ScoresTargets, m.ScoresPlayers)
	case Announce:
		if m.Targets == nil {
			return malformed(m.Type(), "missing targets")
		}
		return validateTargets(m.Type(), m.Targets)
	case Hit:
		if !m.Key().Valid() {
			return malformed(m.Type(), "missing system_id or target_id")
		}
		if m.ScoresTargets == nil && m.ScoresPlayers == nil {
			return malformed(m.Type(), "missing both score lists")
		}
		return validateScores(m.Type(), m.ScoresTargets, m.ScoresPlayers)
	case Unknown:
		return &DecodeError{Type: m.Tag, Reason: "unrecognised tag", Err: ErrUnknownType}
	case nil:
		return malformed("", "nil message")
	}
	return malformed(msg.Type(), "unsupported message")
}

func validateTargets(tag string, targets []domain.Target) error {
	seen := make(map[domain.TargetKey]bool, len(targets))
	for i, t := range targets {
		key := t.Key()
		if !key.Valid() {
			return malformed(tag, "target %d has no system_id/target_id", i)
		}
		if seen[key] {
			return malformed(tag, "duplicate target %s", key)
		}
		seen[key] = true
		if t.LEDTimeMs < 0 {
			return malformed(tag, "target %s has negative led_time_ms", key)
		}
	}
	return nil
}

func validatePlayers(tag string, players []domain.Player) error {
	seen := make(map[domain.PlayerID]bool, len(players))
	for i, p := range players {
		if p.ID == "" {
			return malformed(tag, "player %d has no id", i)
		}
		if seen[p.ID] {
			return malformed(tag, "duplicate player %s", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

func validateScores(tag string, targets []domain.TargetScore, players []domain.PlayerScore) error {
	for i, s := range targets {
		if !s.Key().Valid() {
			return malformed(tag, "target score %d has no system_id/target_id", i)
		}
		if s.Hits < 0 {
			return malformed(tag, "target score %s has negative hits", s.Key())
		}
	}
	for i, s := range players {
		if s.PlayerID == "" && s.Name == "" {
			return malformed(tag, "player score %d has neither player_id nor name", i)
		}
		if s.Hits < 0 {
			return malformed(tag, "player score %s has negative hits", s.Label())
		}
	}
	return nil
}

// ValidatePlayers checks a player list returned by a direct-response command
func ValidatePlayers(players []domain.Player) error {
	return validatePlayers("players", players)
}
