package mirror

import (
	"errors"
	"fmt"

	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/protocol"
)

var (
	// ErrInvalidMessage is returned when a message fails validation for its tag
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnhandled is returned for messages the mirror has no rule for
	ErrUnhandled = errors.New("unhandled message")
)

// Merge computes the state that results from applying msg to prev. It is
// all-or-nothing: on error prev is returned unchanged. Merge never modifies
// prev's slices.
func Merge(prev State, msg protocol.Message) (State, Change, error) {
	if u, ok := msg.(protocol.Unknown); ok {
		return prev, 0, fmt.Errorf("%w: %q", ErrUnhandled, u.Tag)
	}
	if err := protocol.Validate(msg); err != nil {
		return prev, 0, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	next := prev
	switch m := msg.(type) {
	case protocol.Snapshot:
		next = State{
			Targets:       orEmpty(m.Targets),
			Players:       orEmpty(m.Players),
			ScoresTargets: orEmpty(m.ScoresTargets),
			ScoresPlayers: orEmpty(m.ScoresPlayers),
			Game:          m.Game,
		}
		return next, ChangeAll, nil

	case protocol.Announce:
		next.Targets = orEmpty(m.Targets)
		return next, ChangeTargets, nil

	case protocol.Hit:
		next.ScoresTargets = orEmpty(m.ScoresTargets)
		next.ScoresPlayers = orEmpty(m.ScoresPlayers)
		return next, ChangeScores | ChangeFeed, nil
	}
	return prev, 0, fmt.Errorf("%w: %T", ErrUnhandled, msg)
}

// ReplacePlayers returns prev with its player list replaced by players,
// the result of a direct-response command
func ReplacePlayers(prev State, players []domain.Player) (State, error) {
	if err := protocol.ValidatePlayers(players); err != nil {
		return prev, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	next := prev
	next.Players = orEmpty(players)
	return next, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
