package mirror

import (
	"sync"

	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/protocol"
	"github.com/jonboulle/clockwork"
)

// Update is passed to subscribers after every successful change
type Update struct {
	Version uint64
	Change  Change
	State   State
	Entry   *FeedEntry // set when the update added a feed line
}

// Mirror owns the local state. All mutation goes through Apply or
// ReplacePlayers; subscribers are called synchronously by the writer after
// the new state is visible.
type Mirror struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	state   State
	feed    *Feed
	version uint64
	subs    []func(Update)
}

// Option configures a Mirror
type Option func(*Mirror)

// WithClock sets the clock used to timestamp feed entries
func WithClock(c clockwork.Clock) Option {
	return func(m *Mirror) { m.clock = c }
}

// WithFeedSize overrides the feed bound
func WithFeedSize(n int) Option {
	return func(m *Mirror) { m.feed = NewFeed(n) }
}

// New creates an empty mirror: no targets, no players, no scores, no game
func New(opts ...Option) *Mirror {
	m := &Mirror{
		clock: clockwork.NewRealClock(),
		state: State{
			Targets:       []domain.Target{},
			Players:       []domain.Player{},
			ScoresTargets: []domain.TargetScore{},
			ScoresPlayers: []domain.PlayerScore{},
		},
		feed: NewFeed(domain.FeedLimit),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a change hook
func (m *Mirror) Subscribe(fn func(Update)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// Apply merges a decoded message into the mirror. On error the mirror is
// left exactly as it was.
func (m *Mirror) Apply(msg protocol.Message) (Change, error) {
	m.mu.Lock()
	next, change, err := Merge(m.state, msg)
	if err != nil {
		m.mu.Unlock()
		return 0, err
	}
	var entry *FeedEntry
	if hit, ok := msg.(protocol.Hit); ok {
		entry = &FeedEntry{At: m.clock.Now(), Text: hit.FeedText()}
		m.feed.Add(*entry)
	}
	u := m.commitLocked(next, change, entry)
	m.mu.Unlock()

	m.notify(u)
	return change, nil
}

// ReplacePlayers installs the authoritative player list returned by a
// direct-response command
func (m *Mirror) ReplacePlayers(players []domain.Player) error {
	m.mu.Lock()
	next, err := ReplacePlayers(m.state, players)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	u := m.commitLocked(next, ChangePlayers, nil)
	m.mu.Unlock()

	m.notify(u)
	return nil
}

func (m *Mirror) commitLocked(next State, change Change, entry *FeedEntry) Update {
	m.state = next
	m.version++
	return Update{Version: m.version, Change: change, State: next, Entry: entry}
}

func (m *Mirror) notify(u Update) {
	m.mu.RLock()
	subs := m.subs
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(u)
	}
}

// State returns the current state
func (m *Mirror) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Feed returns the hit feed, most recent first
func (m *Mirror) Feed() []FeedEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feed.Entries()
}

// Version returns the number of updates applied so far
func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}
