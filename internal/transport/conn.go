// Package transport manages the lifecycle of the dashboard's real-time
// connection: dial, read until failure, wait a fixed delay, dial again.
package transport

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultReconnectDelay is the fixed wait between a close and the next dial
const DefaultReconnectDelay = time.Second

// State is the connection's position in its lifecycle
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// ConnInfo identifies one connection attempt. Generation increases by one
// per attempt, so events from an older connection can be recognised.
type ConnInfo struct {
	ID         uuid.UUID
	Generation uint64
	URL        string
	Opened     bool // whether the attempt reached StateConnected
}

// Handler receives the connection's transitions. Calls for one Conn are
// made from a single goroutine, in order.
type Handler interface {
	OnOpen(info ConnInfo)
	OnMessage(info ConnInfo, frame []byte)
	OnClose(info ConnInfo, err error)
}

// Stats counts connection attempts
type Stats struct {
	Attempts   uint64 // dials started
	Opens      uint64 // dials that succeeded
	Closes     uint64 // closes, including failed dials
	Reconnects uint64 // reconnect waits scheduled
}

// Conn keeps one real-time connection alive. There is no backoff growth
// and no retry limit.
type Conn struct {
	url     string
	handler Handler
	dialer  Dialer
	clock   clockwork.Clock
	delay   time.Duration
	logger  *log.Logger

	mu    sync.RWMutex
	state State
	gen   uint64
	stats Stats
}

// Option configures a Conn
type Option func(*Conn)

// WithDialer replaces the gorilla/websocket dialer
func WithDialer(d Dialer) Option {
	return func(c *Conn) { c.dialer = d }
}

// WithClock sets the clock used for the reconnect delay
func WithClock(clock clockwork.Clock) Option {
	return func(c *Conn) { c.clock = clock }
}

// WithReconnectDelay overrides the fixed reconnect delay
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a connection manager for url. Nothing is dialed until Run.
func New(url string, h Handler, opts ...Option) *Conn {
	c := &Conn{
		url:     url,
		handler: h,
		dialer:  &WebSocketDialer{},
		clock:   clockwork.NewRealClock(),
		delay:   DefaultReconnectDelay,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint being dialed
func (c *Conn) URL() string { return c.url }

// State returns the current lifecycle state
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns attempt counters
func (c *Conn) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Run dials and re-dials until ctx is cancelled. Connection failures are
// reported to the Handler and never returned; the only error is ctx.Err().
func (c *Conn) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.runOnce(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		c.stats.Reconnects++
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.delay):
		}
	}
}

// runOnce performs one Connecting → (Connected →) Disconnected cycle
func (c *Conn) runOnce(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.state = StateConnecting
	c.stats.Attempts++
	info := ConnInfo{ID: uuid.New(), Generation: c.gen, URL: c.url}
	c.mu.Unlock()

	sock, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.closed(info, err)
		return
	}

	info.Opened = true
	c.mu.Lock()
	c.state = StateConnected
	c.stats.Opens++
	c.mu.Unlock()
	c.logger.Printf("WebSocket connected to %s", c.url)
	c.handler.OnOpen(info)

	// Unblock Read when the caller shuts down
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			sock.Close()
		case <-stop:
		}
	}()

	for {
		frame, err := sock.Read()
		if err != nil {
			close(stop)
			wg.Wait()
			sock.Close()
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			c.closed(info, err)
			return
		}
		c.handler.OnMessage(info, frame)
	}
}

func (c *Conn) closed(info ConnInfo, err error) {
	c.mu.Lock()
	c.state = StateDisconnected
	c.stats.Closes++
	c.mu.Unlock()

	switch {
	case errors.Is(err, context.Canceled):
	case info.Opened && IsNormalClose(err):
		c.logger.Printf("WebSocket closed by server, reconnecting in %v", c.delay)
	case info.Opened:
		c.logger.Printf("WebSocket connection lost: %v; reconnecting in %v", err, c.delay)
	default:
		c.logger.Printf("WebSocket connect failed: %v; retrying in %v", err, c.delay)
	}
	c.handler.OnClose(info, err)
}
