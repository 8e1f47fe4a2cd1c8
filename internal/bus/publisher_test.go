package bus

import (
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/mirror"
)

func startBus(t *testing.T) (*Publisher, *nats.Conn) {
	t.Helper()
	e, err := RunEmbedded("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("RunEmbedded: %v", err)
	}
	t.Cleanup(e.Shutdown)

	pub, err := Connect(e.ClientURL(), "test", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { pub.Close() })

	sub, err := nats.Connect(e.ClientURL())
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	t.Cleanup(sub.Close)
	return pub, sub
}

func receive(t *testing.T, ch <-chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPublishHitUpdate(t *testing.T) {
	pub, sub := startBus(t)
	ch := make(chan *nats.Msg, 8)
	if _, err := sub.ChanSubscribe("test.>", ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := mirror.Update{
		Version: 4,
		Change:  mirror.ChangeScores | mirror.ChangeFeed,
		State: mirror.State{
			ScoresTargets: []domain.TargetScore{{SystemID: "A", TargetID: "1", Hits: 3}},
		},
		Entry: &mirror.FeedEntry{At: at, Text: "A/1 hit"},
	}
	if err := pub.Publish(u); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	m := receive(t, ch)
	if m.Subject != "test.scores" {
		t.Fatalf("first subject = %q, want test.scores", m.Subject)
	}
	var ev ScoresEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Version != 4 || len(ev.ScoresTargets) != 1 || ev.ScoresTargets[0].Hits != 3 {
		t.Errorf("unexpected scores event: %+v", ev)
	}

	m = receive(t, ch)
	if m.Subject != "test.feed" {
		t.Fatalf("second subject = %q, want test.feed", m.Subject)
	}
	var feed FeedEvent
	if err := json.Unmarshal(m.Data, &feed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if feed.Version != 4 || feed.Feed.Text != "A/1 hit" || !feed.Feed.At.Equal(at) {
		t.Errorf("unexpected feed event: %+v", feed)
	}
}

func TestPublishSnapshotCoversEveryPart(t *testing.T) {
	pub, sub := startBus(t)
	ch := make(chan *nats.Msg, 8)
	sub.ChanSubscribe("test.*", ch)
	sub.Flush()

	pub.OnUpdate(mirror.Update{Version: 1, Change: mirror.ChangeAll})

	want := []string{"test.targets", "test.players", "test.scores", "test.game"}
	for _, subject := range want {
		if m := receive(t, ch); m.Subject != subject {
			t.Errorf("subject = %q, want %q", m.Subject, subject)
		}
	}
}

func TestPublishEmptyPartsKeepTheirFields(t *testing.T) {
	pub, sub := startBus(t)
	ch := make(chan *nats.Msg, 8)
	sub.ChanSubscribe("test.*", ch)
	sub.Flush()

	// A snapshot that cleared every list and has no game
	if err := pub.Publish(mirror.Update{Version: 7, Change: mirror.ChangeAll}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := map[string]string{
		"test.targets": `{"version":7,"targets":[]}`,
		"test.players": `{"version":7,"players":[]}`,
		"test.scores":  `{"version":7,"scores_targets":[],"scores_players":[]}`,
		"test.game":    `{"version":7,"game":null}`,
	}
	for range want {
		m := receive(t, ch)
		if got := string(m.Data); got != want[m.Subject] {
			t.Errorf("%s payload = %s, want %s", m.Subject, got, want[m.Subject])
		}
	}
}

func TestPublishStatus(t *testing.T) {
	pub, sub := startBus(t)
	ch := make(chan *nats.Msg, 1)
	sub.ChanSubscribe(pub.Subject(SubjectStatus), ch)
	sub.Flush()

	pub.PublishStatus(domain.StatusDisconnected)

	var ev StatusEvent
	if err := json.Unmarshal(receive(t, ch).Data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Status != "disconnected, retrying" {
		t.Errorf("status = %q", ev.Status)
	}
}

func TestDefaultPrefix(t *testing.T) {
	p := NewPublisher(nil, "", nil)
	if got := p.Subject(SubjectGame); got != "range.game" {
		t.Errorf("Subject = %q, want range.game", got)
	}
}
