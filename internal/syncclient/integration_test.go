package syncclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ernie/range-dashboard/internal/command"
	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/mirror"
	"github.com/ernie/range-dashboard/internal/rangetest"
)

type liveHarness struct {
	*harness
	srv    *rangetest.Server
	cancel context.CancelFunc
	runErr chan error
}

func startLive(t *testing.T, targets ...domain.Target) *liveHarness {
	t.Helper()
	srv := rangetest.New()
	t.Cleanup(srv.Close)
	srv.SetTargets(targets...)

	h := &harness{
		observer: &recordingObserver{},
		updates:  make(chan mirror.Update, 64),
		statuses: make(chan domain.Status, 64),
	}
	c, err := New(context.Background(), Options{
		Origin:         srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		Logger:         quiet,
		Observers:      []Observer{h.observer},
		OnChange:       func(u mirror.Update) { h.updates <- u },
		OnStatus:       func(s domain.Status) { h.statuses <- s },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.client = c

	ctx, cancel := context.WithCancel(context.Background())
	lh := &liveHarness{harness: h, srv: srv, cancel: cancel, runErr: make(chan error, 1)}
	go func() { lh.runErr <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-lh.runErr:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
		c.Close()
	})
	return lh
}

// waitFor receives updates until one includes want
func waitFor(t *testing.T, ch <-chan mirror.Update, want mirror.Change) mirror.Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-ch:
			if u.Change.Has(want) {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v update", want)
			return mirror.Update{}
		}
	}
}

var (
	targetA1 = domain.Target{SystemID: "A", TargetID: "1", LEDColor: "#ff0000", LEDTimeMs: 1000}
	targetA2 = domain.Target{SystemID: "A", TargetID: "2", LEDColor: "#0000ff", LEDTimeMs: 800}
)

func TestLive_SnapshotOnConnect(t *testing.T) {
	lh := startLive(t, targetA1, targetA2)

	u := waitFor(t, lh.updates, mirror.ChangeAll)
	if len(u.State.Targets) != 2 {
		t.Fatalf("targets = %+v", u.State.Targets)
	}
	if u.State.Game != nil {
		t.Errorf("game = %+v, want none", u.State.Game)
	}
	if got := recvStatus(t, lh.statuses); got != domain.StatusConnected {
		t.Errorf("status = %q", got)
	}
}

func TestLive_SelectTargetArrivesAsAnnounce(t *testing.T) {
	lh := startLive(t, targetA1, targetA2)
	waitFor(t, lh.updates, mirror.ChangeAll)
	ctx := context.Background()

	if err := lh.client.SelectTarget(ctx, targetA2.Key(), true); err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	u := waitFor(t, lh.updates, mirror.ChangeTargets)
	if u.Change != mirror.ChangeTargets {
		t.Errorf("announce changed %v, want targets only", u.Change)
	}
	got, ok := u.State.Target(targetA2.Key())
	if !ok || !bool(got.Active) {
		t.Errorf("A/2 not active after announce: %+v", got)
	}

	if err := lh.client.SetLED(ctx, targetA1.Key(), "#00ff00", 20); err != nil {
		t.Fatalf("SetLED: %v", err)
	}
	u = waitFor(t, lh.updates, mirror.ChangeTargets)
	got, _ = u.State.Target(targetA1.Key())
	if got.LEDColor != "#00ff00" || got.LEDTimeMs != domain.MinLEDTimeMs {
		t.Errorf("A/1 led = %s/%d, want server-clamped #00ff00/50", got.LEDColor, got.LEDTimeMs)
	}
}

func TestLive_HitAddsFeedEntry(t *testing.T) {
	lh := startLive(t, targetA1)
	waitFor(t, lh.updates, mirror.ChangeAll)

	lh.srv.Hit(targetA1.Key(), "")
	u := waitFor(t, lh.updates, mirror.ChangeScores)
	if u.Entry == nil || u.Entry.Text != "A/1 hit" {
		t.Fatalf("entry = %+v", u.Entry)
	}
	if len(u.State.ScoresTargets) != 1 || u.State.ScoresTargets[0].Hits != 1 {
		t.Errorf("scores = %+v", u.State.ScoresTargets)
	}
	feed := lh.client.Feed()
	if len(feed) != 1 || feed[0].Text != "A/1 hit" {
		t.Errorf("feed = %+v", feed)
	}
}

func TestLive_ReconnectReanchorsWithSnapshot(t *testing.T) {
	lh := startLive(t, targetA1)
	waitFor(t, lh.updates, mirror.ChangeAll)
	recvStatus(t, lh.statuses)

	// Not broadcast: only the next snapshot carries the new target
	lh.srv.SetTargets(targetA1, targetA2)
	lh.srv.DropClients()
	if got := recvStatus(t, lh.statuses); got != domain.StatusDisconnected {
		t.Fatalf("status after drop = %q", got)
	}

	if got := recvStatus(t, lh.statuses); got != domain.StatusConnected {
		t.Fatalf("status after reconnect = %q", got)
	}
	u := waitFor(t, lh.updates, mirror.ChangeAll)
	if len(u.State.Targets) != 2 {
		t.Errorf("targets after re-anchor = %+v", u.State.Targets)
	}
	if lh.srv.Opens() != 2 {
		t.Errorf("server saw %d connections, want 2", lh.srv.Opens())
	}
	if stats := lh.client.Stats(); stats.Transport.Opens != 2 {
		t.Errorf("transport opens = %d, want 2", stats.Transport.Opens)
	}
}

func TestLive_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	lh := startLive(t, targetA1)
	waitFor(t, lh.updates, mirror.ChangeAll)
	version := lh.client.Version()

	lh.srv.SendRaw(`{"type":"hit"}`)
	lh.srv.SendRaw(`{"type":"mystery","x":1}`)
	lh.srv.Announce()

	u := waitFor(t, lh.updates, mirror.ChangeTargets)
	if u.Version != version+1 {
		t.Errorf("version = %d, want %d", u.Version, version+1)
	}
	if stats := lh.client.Stats(); stats.Rejected != 2 {
		t.Errorf("rejected = %d, want 2", stats.Rejected)
	}
	if lh.srv.Opens() != 1 {
		t.Errorf("connection was reopened (%d opens)", lh.srv.Opens())
	}
}

func TestLive_AddPlayerReplacesRoster(t *testing.T) {
	lh := startLive(t, targetA1)
	waitFor(t, lh.updates, mirror.ChangeAll)
	ctx := context.Background()

	players, err := lh.client.AddPlayer(ctx, "Alex")
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	want := []domain.Player{{ID: "1", Name: "Alex"}}
	if len(players) != 1 || players[0].ID != want[0].ID || players[0].Name != want[0].Name {
		t.Fatalf("players = %+v, want %+v", players, want)
	}
	u := waitFor(t, lh.updates, mirror.ChangePlayers)
	if u.Change != mirror.ChangePlayers {
		t.Errorf("change = %v, want players only", u.Change)
	}
	state := lh.client.State()
	if len(state.Players) != 1 || state.Players[0].Name != "Alex" || state.Players[0].ID != "1" {
		t.Errorf("mirror players = %+v", state.Players)
	}

	players, err = lh.client.RemovePlayer(ctx, "1")
	if err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}
	if len(players) != 0 {
		t.Errorf("players after remove = %+v", players)
	}
	waitFor(t, lh.updates, mirror.ChangePlayers)
	if len(lh.client.State().Players) != 0 {
		t.Errorf("mirror players after remove = %+v", lh.client.State().Players)
	}
}

func TestLive_CommandFailureLeavesMirror(t *testing.T) {
	lh := startLive(t, targetA1)
	waitFor(t, lh.updates, mirror.ChangeAll)
	version := lh.client.Version()

	lh.srv.FailNext("POST", "/api/players", 500, `{"error":"database locked"}`)
	_, err := lh.client.AddPlayer(context.Background(), "Alex")
	var se *command.StatusError
	if !errors.As(err, &se) || se.StatusCode != 500 || se.Message != "database locked" {
		t.Fatalf("AddPlayer error = %v", err)
	}
	if lh.client.Version() != version {
		t.Errorf("mirror changed after failed command")
	}
}

func TestLive_GameHintsDoNotTouchMirror(t *testing.T) {
	lh := startLive(t, targetA1)
	waitFor(t, lh.updates, mirror.ChangeAll)
	version := lh.client.Version()
	ctx := context.Background()

	game, err := lh.client.StartGame(ctx, command.StartGameRequest{
		Mode:   domain.ModeRaceToN,
		Params: domain.GameParams{N: 5},
	})
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if game == nil || game.Mode != domain.ModeRaceToN || game.Params.N != 5 {
		t.Fatalf("game hint = %+v", game)
	}
	if game.Describe() != "Active: race_to_n (first to 5)" {
		t.Errorf("Describe = %q", game.Describe())
	}

	stopped, err := lh.client.StopGame(ctx)
	if err != nil {
		t.Fatalf("StopGame: %v", err)
	}
	if stopped != nil {
		t.Errorf("stop hint = %+v, want nil", stopped)
	}
	if lh.client.Version() != version || lh.client.State().Game != nil {
		t.Errorf("game hints were written to the mirror")
	}
}
