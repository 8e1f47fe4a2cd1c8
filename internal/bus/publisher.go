// Package bus republishes mirror updates on NATS so other processes in the
// range can follow the dashboard's state without their own connection.
package bus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/mirror"
)

// DefaultPrefix is the subject prefix used when none is configured
const DefaultPrefix = "range"

// Subject suffixes, one per mirror part
const (
	SubjectTargets = "targets"
	SubjectPlayers = "players"
	SubjectScores  = "scores"
	SubjectGame    = "game"
	SubjectFeed    = "feed"
	SubjectStatus  = "status"
)

// TargetsEvent is published on the targets subject. Lists are always
// present, empty when the mirror holds none.
type TargetsEvent struct {
	Version uint64          `json:"version"`
	Targets []domain.Target `json:"targets"`
}

// PlayersEvent is published on the players subject
type PlayersEvent struct {
	Version uint64          `json:"version"`
	Players []domain.Player `json:"players"`
}

// ScoresEvent is published on the scores subject
type ScoresEvent struct {
	Version       uint64               `json:"version"`
	ScoresTargets []domain.TargetScore `json:"scores_targets"`
	ScoresPlayers []domain.PlayerScore `json:"scores_players"`
}

// GameEvent is published on the game subject. Game is null when no game
// is configured.
type GameEvent struct {
	Version uint64       `json:"version"`
	Game    *domain.Game `json:"game"`
}

// FeedEvent is published on the feed subject for each new hit line
type FeedEvent struct {
	Version uint64    `json:"version"`
	Feed    FeedEntry `json:"feed"`
}

// FeedEntry is one hit feed line
type FeedEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// StatusEvent reports connection status changes
type StatusEvent struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Publisher sends mirror updates to NATS subjects under a prefix
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *log.Logger
}

// Connect dials the NATS server at url
func Connect(url, prefix string, logger *log.Logger) (*Publisher, error) {
	if logger == nil {
		logger = log.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("rangectl"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return NewPublisher(nc, prefix, logger), nil
}

// NewPublisher wraps an existing NATS connection
func NewPublisher(nc *nats.Conn, prefix string, logger *log.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the full subject for a suffix
func (p *Publisher) Subject(suffix string) string {
	return p.prefix + "." + suffix
}

// Publish sends one event per part included in u.Change
func (p *Publisher) Publish(u mirror.Update) error {
	s := u.State
	if u.Change.Has(mirror.ChangeTargets) {
		if err := p.send(SubjectTargets, TargetsEvent{Version: u.Version, Targets: orEmpty(s.Targets)}); err != nil {
			return err
		}
	}
	if u.Change.Has(mirror.ChangePlayers) {
		if err := p.send(SubjectPlayers, PlayersEvent{Version: u.Version, Players: orEmpty(s.Players)}); err != nil {
			return err
		}
	}
	if u.Change.Has(mirror.ChangeScores) {
		ev := ScoresEvent{Version: u.Version, ScoresTargets: orEmpty(s.ScoresTargets), ScoresPlayers: orEmpty(s.ScoresPlayers)}
		if err := p.send(SubjectScores, ev); err != nil {
			return err
		}
	}
	if u.Change.Has(mirror.ChangeGame) {
		if err := p.send(SubjectGame, GameEvent{Version: u.Version, Game: s.Game}); err != nil {
			return err
		}
	}
	if u.Entry != nil {
		ev := FeedEvent{Version: u.Version, Feed: FeedEntry{At: u.Entry.At, Text: u.Entry.Text}}
		if err := p.send(SubjectFeed, ev); err != nil {
			return err
		}
	}
	return nil
}

// OnUpdate is a mirror change hook. Publish errors are logged.
func (p *Publisher) OnUpdate(u mirror.Update) {
	if err := p.Publish(u); err != nil {
		p.logger.Printf("Failed to publish update %d: %v", u.Version, err)
	}
}

// PublishStatus sends a connection status change
func (p *Publisher) PublishStatus(status domain.Status) {
	if err := p.send(SubjectStatus, StatusEvent{Status: string(status), At: time.Now()}); err != nil {
		p.logger.Printf("Failed to publish status: %v", err)
	}
}

// orEmpty keeps nil lists from encoding as null
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (p *Publisher) send(suffix string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", suffix, err)
	}
	if err := p.nc.Publish(p.Subject(suffix), data); err != nil {
		return fmt.Errorf("publishing %s event: %w", suffix, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}
