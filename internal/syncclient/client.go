// Package syncclient keeps a local mirror of range state in step with the
// server. One goroutine owns the mirror; transport events and command
// completions are queued to it and handled in arrival order.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ernie/range-dashboard/internal/command"
	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/mirror"
	"github.com/ernie/range-dashboard/internal/transport"
)

// ErrClosed is returned by commands issued after Close
var ErrClosed = errors.New("sync client closed")

// Options configures a Client
type Options struct {
	// Origin is the dashboard's page origin, e.g. http://127.0.0.1:8000
	Origin string
	// WSPath overrides the real-time channel path (default /ws)
	WSPath string

	ReconnectDelay time.Duration
	FeedSize       int
	ReadLimit      int64
	ReadTimeout    time.Duration
	CommandTimeout time.Duration

	// ID names this client instance; zero picks a random one
	ID uuid.UUID

	// Dialer replaces the gorilla/websocket dialer
	Dialer transport.Dialer
	// Clock drives the reconnect delay and feed timestamps
	Clock clockwork.Clock
	// Commands replaces the HTTP command client built from Origin
	Commands *command.Client
	Logger   *log.Logger

	Observers []Observer
	// OnStatus is called from the loop goroutine with each status change
	OnStatus func(domain.Status)
	// OnChange is called from the loop goroutine after each mirror update
	OnChange func(mirror.Update)
}

// Stats counts frames handled by the loop
type Stats struct {
	Applied   uint64
	Rejected  uint64
	// Stale counts frames, opens and closes from superseded connections
	Stale     uint64
	Transport transport.Stats
}

// Client is the dashboard's sync client
type Client struct {
	id        uuid.UUID
	mirror    *mirror.Mirror
	conn      *transport.Conn
	commands  *command.Client
	logger    *log.Logger
	observers observers
	onStatus  func(domain.Status)

	inbox  chan event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// owned by the loop goroutine
	current transport.ConnInfo
	open    bool

	statusMu sync.RWMutex
	status   domain.Status

	applied  atomic.Uint64
	rejected atomic.Uint64
	stale    atomic.Uint64
}

// New builds a client and starts its event loop. Nothing is dialed until
// Run. The loop stops when parent is cancelled or Close is called.
func New(parent context.Context, opts Options) (*Client, error) {
	url, err := transport.Endpoint(opts.Origin, opts.WSPath)
	if err != nil {
		return nil, fmt.Errorf("deriving endpoint: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	mirrorOpts := []mirror.Option{mirror.WithClock(clock)}
	if opts.FeedSize > 0 {
		mirrorOpts = append(mirrorOpts, mirror.WithFeedSize(opts.FeedSize))
	}

	commands := opts.Commands
	if commands == nil {
		commands = command.NewClient(opts.Origin, command.WithTimeout(opts.CommandTimeout))
	}

	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	ctx, cancel := context.WithCancel(parent)
	c := &Client{
		id:        id,
		mirror:    mirror.New(mirrorOpts...),
		commands:  commands,
		logger:    logger,
		observers: observers(opts.Observers),
		onStatus:  opts.OnStatus,
		inbox:     make(chan event, 64),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    domain.StatusConnecting,
	}
	if opts.OnChange != nil {
		c.mirror.Subscribe(opts.OnChange)
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &transport.WebSocketDialer{ReadLimit: opts.ReadLimit, ReadTimeout: opts.ReadTimeout}
	}
	c.conn = transport.New(url, c,
		transport.WithDialer(dialer),
		transport.WithClock(clock),
		transport.WithReconnectDelay(opts.ReconnectDelay),
		transport.WithLogger(logger),
	)

	go c.loop()
	return c, nil
}

// ID identifies this client instance in journals and logs
func (c *Client) ID() uuid.UUID { return c.id }

// URL returns the real-time endpoint
func (c *Client) URL() string { return c.conn.URL() }

// Run keeps the connection alive until ctx is cancelled or the client is
// closed. It returns the cancellation cause.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return c.conn.Run(ctx)
}

// Close stops the event loop. Run returns shortly after.
func (c *Client) Close() {
	c.cancel()
	<-c.done
}

// Done is closed when the event loop has stopped
func (c *Client) Done() <-chan struct{} { return c.done }

// State returns the current mirror contents
func (c *Client) State() mirror.State { return c.mirror.State() }

// Feed returns the hit feed, most recent first
func (c *Client) Feed() []mirror.FeedEntry { return c.mirror.Feed() }

// Version returns the number of mirror updates so far
func (c *Client) Version() uint64 { return c.mirror.Version() }

// Status returns the connection status shown to the operator
func (c *Client) Status() domain.Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Stats returns frame and connection counters
func (c *Client) Stats() Stats {
	return Stats{
		Applied:   c.applied.Load(),
		Rejected:  c.rejected.Load(),
		Stale:     c.stale.Load(),
		Transport: c.conn.Stats(),
	}
}

// Commands returns the underlying command client
func (c *Client) Commands() *command.Client { return c.commands }

// OnOpen implements transport.Handler
func (c *Client) OnOpen(info transport.ConnInfo) {
	c.post(openedEvent{info: info})
}

// OnMessage implements transport.Handler
func (c *Client) OnMessage(info transport.ConnInfo, frame []byte) {
	c.post(frameEvent{info: info, data: frame})
}

// OnClose implements transport.Handler
func (c *Client) OnClose(info transport.ConnInfo, err error) {
	c.post(closedEvent{info: info, err: err})
}

// post queues an event for the loop. It reports false once the loop has
// stopped.
func (c *Client) post(ev event) bool {
	select {
	case c.inbox <- ev:
		return true
	case <-c.done:
		return false
	}
}
