// Package protocol decodes frames pushed over the range's real-time channel
// into a closed set of typed messages.
package protocol

import (
	"github.com/ernie/range-dashboard/internal/domain"
)

// Message is one decoded frame. The set of implementations is closed:
// Snapshot, Announce, Hit and Unknown.
type Message interface {
	Type() string
	isMessage()
}

// Snapshot is a full-state baseline. A nil list means the field was absent.
type Snapshot struct {
	Targets       []domain.Target
	Players       []domain.Player
	ScoresTargets []domain.TargetScore
	ScoresPlayers []domain.PlayerScore
	Game          *domain.Game
}

// Announce replaces the target list only
type Announce struct {
	Targets []domain.Target
}

// Hit carries refreshed scores for a hit on one target
type Hit struct {
	SystemID      string
	TargetID      string
	ScoresTargets []domain.TargetScore
	ScoresPlayers []domain.PlayerScore
}

// Unknown is a well-formed frame whose type tag is not recognised
type Unknown struct {
	Tag string
	Raw []byte
}

func (Snapshot) Type() string { return domain.MessageSnapshot }
func (Announce) Type() string { return domain.MessageAnnounce }
func (Hit) Type() string { return domain.MessageHit }
func (u Unknown) Type() string { return u.Tag }

func (Snapshot) isMessage() {}
func (Announce) isMessage() {}
func (Hit) isMessage() {}
func (Unknown) isMessage() {}

// Key returns the target that was hit
func (h Hit) Key() domain.TargetKey {
	return domain.TargetKey{SystemID: h.SystemID, TargetID: h.TargetID}
}

// FeedText returns the event-feed line for this hit
func (h Hit) FeedText() string {
	return h.Key().String() + " hit"
}
