package syncclient

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/mirror"
	"github.com/ernie/range-dashboard/internal/protocol"
	"github.com/ernie/range-dashboard/internal/transport"
)

var quiet = log.New(io.Discard, "", 0)

type recordingObserver struct {
	mu       sync.Mutex
	opened   int
	closed   int
	applied  []string
	rejected []error
	stale    int
}

func (o *recordingObserver) ConnectionOpened(transport.ConnInfo) {
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()
}

func (o *recordingObserver) ConnectionClosed(transport.ConnInfo, error) {
	o.mu.Lock()
	o.closed++
	o.mu.Unlock()
}

func (o *recordingObserver) FrameApplied(_ transport.ConnInfo, _ []byte, msg protocol.Message, _ mirror.Change) {
	o.mu.Lock()
	o.applied = append(o.applied, msg.Type())
	o.mu.Unlock()
}

func (o *recordingObserver) FrameRejected(_ transport.ConnInfo, _ []byte, err error) {
	o.mu.Lock()
	o.rejected = append(o.rejected, err)
	o.mu.Unlock()
}

func (o *recordingObserver) FrameStale(transport.ConnInfo, []byte) {
	o.mu.Lock()
	o.stale++
	o.mu.Unlock()
}

type harness struct {
	client   *Client
	observer *recordingObserver
	updates  chan mirror.Update
	statuses chan domain.Status
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		observer: &recordingObserver{},
		updates:  make(chan mirror.Update, 64),
		statuses: make(chan domain.Status, 64),
	}
	c, err := New(context.Background(), Options{
		Origin:    "http://range.test",
		Logger:    quiet,
		Observers: []Observer{h.observer},
		OnChange:  func(u mirror.Update) { h.updates <- u },
		OnStatus:  func(s domain.Status) { h.statuses <- s },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	h.client = c
	return h
}

func recvUpdate(t *testing.T, ch <-chan mirror.Update) mirror.Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mirror update")
		return mirror.Update{}
	}
}

func recvStatus(t *testing.T, ch <-chan domain.Status) domain.Status {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status")
		return ""
	}
}

// sync waits until every event posted so far has been handled
func (h *harness) sync(t *testing.T) {
	t.Helper()
	reply := make(chan error, 1)
	// An invalid roster is rejected by the loop without touching the mirror
	// and without notifying subscribers.
	h.client.inbox <- playersEvent{players: []domain.Player{{ID: "", Name: ""}}, reply: reply}
	select {
	case <-reply:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loop")
	}
}

func conn(gen uint64) transport.ConnInfo {
	return transport.ConnInfo{ID: uuid.New(), Generation: gen, URL: "ws://range.test/ws", Opened: true}
}

const snapshotFrame = `{"type":"snapshot","targets":[{"system_id":"A","target_id":"1","active":true,"led_color":"#00ff00","led_time_ms":500}],"players":[{"id":1,"name":"Sam"}],"scores_targets":[],"scores_players":[],"game":null}`

func TestNewRejectsBadOrigin(t *testing.T) {
	if _, err := New(context.Background(), Options{Origin: "ftp://range"}); err == nil {
		t.Fatal("expected error for unsupported origin")
	}
}

func TestClient_StatusFollowsConnection(t *testing.T) {
	h := newHarness(t)
	if got := h.client.Status(); got != domain.StatusConnecting {
		t.Fatalf("initial status = %q, want %q", got, domain.StatusConnecting)
	}

	info := conn(1)
	h.client.OnOpen(info)
	if got := recvStatus(t, h.statuses); got != domain.StatusConnected {
		t.Errorf("status after open = %q", got)
	}
	h.client.OnClose(info, errors.New("reset"))
	if got := recvStatus(t, h.statuses); got != "disconnected, retrying" {
		t.Errorf("status after close = %q", got)
	}
	if h.client.Status() != domain.StatusDisconnected {
		t.Errorf("Status() = %q", h.client.Status())
	}
}

func TestClient_AppliesFramesFromCurrentConnection(t *testing.T) {
	h := newHarness(t)
	info := conn(1)
	h.client.OnOpen(info)
	h.client.OnMessage(info, []byte(snapshotFrame))

	u := recvUpdate(t, h.updates)
	if u.Change != mirror.ChangeAll {
		t.Errorf("change = %v, want all", u.Change)
	}
	state := h.client.State()
	if len(state.Targets) != 1 || state.Targets[0].LEDColor != "#00ff00" {
		t.Errorf("targets = %+v", state.Targets)
	}
	if len(state.Players) != 1 || state.Players[0].ID != "1" {
		t.Errorf("players = %+v", state.Players)
	}

	h.client.OnMessage(info, []byte(`{"type":"hit","system_id":"A","target_id":"1","scores_targets":[{"system_id":"A","target_id":"1","hits":1}],"scores_players":[]}`))
	u = recvUpdate(t, h.updates)
	if u.Entry == nil || u.Entry.Text != "A/1 hit" {
		t.Errorf("feed entry = %+v", u.Entry)
	}
	if stats := h.client.Stats(); stats.Applied != 2 {
		t.Errorf("applied = %d, want 2", stats.Applied)
	}
}

func TestClient_DropsStaleFrames(t *testing.T) {
	h := newHarness(t)
	old := conn(1)
	h.client.OnOpen(old)
	h.client.OnClose(old, errors.New("reset"))
	current := conn(2)
	h.client.OnOpen(current)

	// Late frame from the first connection, then a frame before any open
	h.client.OnMessage(old, []byte(snapshotFrame))
	h.sync(t)

	if v := h.client.Version(); v != 0 {
		t.Fatalf("stale frame changed the mirror (version %d)", v)
	}
	if stats := h.client.Stats(); stats.Stale != 1 {
		t.Errorf("stale = %d, want 1", stats.Stale)
	}

	h.client.OnClose(current, errors.New("reset"))
	h.client.OnMessage(current, []byte(snapshotFrame))
	h.sync(t)
	if v := h.client.Version(); v != 0 {
		t.Fatalf("frame after close changed the mirror (version %d)", v)
	}
	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	if h.observer.stale != 2 {
		t.Errorf("observer stale = %d, want 2", h.observer.stale)
	}
}

func TestClient_IgnoresLateOpenAndClose(t *testing.T) {
	h := newHarness(t)
	old := conn(1)
	current := conn(2)
	h.client.OnOpen(current)
	if got := recvStatus(t, h.statuses); got != domain.StatusConnected {
		t.Fatalf("status = %q", got)
	}

	// Events from the first attempt arriving after the second opened
	h.client.OnClose(old, errors.New("reset"))
	h.client.OnOpen(old)
	h.client.OnMessage(current, []byte(snapshotFrame))

	u := recvUpdate(t, h.updates)
	if u.Version != 1 || u.Change != mirror.ChangeAll {
		t.Errorf("snapshot on current connection = %+v", u)
	}
	h.sync(t)
	if got := h.client.Status(); got != domain.StatusConnected {
		t.Errorf("status after late events = %q, want connected", got)
	}
	if n := len(h.statuses); n != 0 {
		t.Errorf("late events produced %d status changes", n)
	}
	if stats := h.client.Stats(); stats.Stale != 2 || stats.Applied != 1 {
		t.Errorf("stats = %+v, want 2 stale and 1 applied", stats)
	}

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	if h.observer.opened != 1 || h.observer.closed != 0 {
		t.Errorf("observer saw %d opens and %d closes, want 1 and 0", h.observer.opened, h.observer.closed)
	}
}

func TestClient_RejectsMalformedFramesWithoutChange(t *testing.T) {
	h := newHarness(t)
	info := conn(1)
	h.client.OnOpen(info)
	h.client.OnMessage(info, []byte(snapshotFrame))
	recvUpdate(t, h.updates)
	before := h.client.State()

	for _, frame := range []string{
		`{"type":"hit"}`,
		`not json`,
		`{"targets":[]}`,
		`{"type":"announce"}`,
		`{"type":"ping"}`,
	} {
		h.client.OnMessage(info, []byte(frame))
	}
	h.sync(t)

	if v := h.client.Version(); v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
	after := h.client.State()
	if len(after.Targets) != len(before.Targets) || len(after.Players) != len(before.Players) {
		t.Errorf("mirror changed: %+v", after)
	}
	if len(h.client.Feed()) != 0 {
		t.Errorf("feed = %+v, want empty", h.client.Feed())
	}

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	if len(h.observer.rejected) != 5 {
		t.Fatalf("rejected = %d, want 5", len(h.observer.rejected))
	}
	if !errors.Is(h.observer.rejected[4], protocol.ErrUnknownType) {
		t.Errorf("unknown tag reported as %v", h.observer.rejected[4])
	}
	for _, err := range h.observer.rejected[:4] {
		if !errors.Is(err, protocol.ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	}
}

func TestClient_CommandsAfterClose(t *testing.T) {
	c, err := New(context.Background(), Options{Origin: "http://range.test", Logger: quiet})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Close()
	if err := c.replacePlayers(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("replacePlayers after close = %v, want ErrClosed", err)
	}
	if err := c.Run(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("Run after close = %v, want context.Canceled", err)
	}
}

// refusingDialer fails every dial and signals each attempt
type refusingDialer struct{ dials chan struct{} }

func (d *refusingDialer) Dial(ctx context.Context, url string) (transport.Socket, error) {
	d.dials <- struct{}{}
	return nil, errors.New("connection refused")
}

func TestClient_ReconnectsWithoutTouchingMirror(t *testing.T) {
	const closes = 3
	clock := clockwork.NewFakeClock()
	dialer := &refusingDialer{dials: make(chan struct{}, 16)}
	statuses := make(chan domain.Status, 16)
	c, err := New(context.Background(), Options{
		Origin:   "https://range.test",
		Dialer:   dialer,
		Clock:    clock,
		Logger:   quiet,
		OnStatus: func(s domain.Status) { statuses <- s },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if c.URL() != "wss://range.test/ws" {
		t.Errorf("URL = %q", c.URL())
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	for i := 0; i < closes; i++ {
		select {
		case <-dialer.dials:
		case <-time.After(2 * time.Second):
			t.Fatalf("dial %d never happened", i+1)
		}
		if got := recvStatus(t, statuses); got != domain.StatusDisconnected {
			t.Fatalf("status after failed dial = %q", got)
		}
		waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
			waitCancel()
			t.Fatalf("reconnect %d was not scheduled: %v", i+1, err)
		}
		waitCancel()
		clock.Advance(time.Second)
	}
	select {
	case <-dialer.dials:
	case <-time.After(2 * time.Second):
		t.Fatal("final redial never happened")
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if v := c.Version(); v != 0 {
		t.Errorf("mirror version = %d after failed connections, want 0", v)
	}
	if stats := c.Stats(); stats.Transport.Attempts != closes+1 {
		t.Errorf("attempts = %d, want %d", stats.Transport.Attempts, closes+1)
	}
}
