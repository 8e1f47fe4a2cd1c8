package protocol

import (
	"errors"
	"testing"

	"github.com/ernie/range-dashboard/internal/domain"
)

func TestDecode_Snapshot(t *testing.T) {
	frame := `{"type":"snapshot",
		"targets":[{"system_id":"A","target_id":"1","active":0,"led_color":"#ff0000","led_time_ms":1000}],
		"players":[{"id":1,"name":"Alex"}],
		"scores_targets":[{"system_id":"A","target_id":"1","hits":2}],
		"scores_players":[{"player_id":1,"name":"Alex","hits":2}],
		"game":{"id":7,"mode":"time_attack","params_json":"{\"seconds\":45}","active":1}}`

	msg, err := Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	snap, ok := msg.(Snapshot)
	if !ok {
		t.Fatalf("expected Snapshot, got %T", msg)
	}
	if len(snap.Targets) != 1 || snap.Targets[0].Key() != (domain.TargetKey{SystemID: "A", TargetID: "1"}) {
		t.Fatalf("unexpected targets: %+v", snap.Targets)
	}
	if bool(snap.Targets[0].Active) {
		t.Fatalf("expected inactive target")
	}
	if len(snap.Players) != 1 || snap.Players[0].ID != "1" {
		t.Fatalf("unexpected players: %+v", snap.Players)
	}
	if snap.Game == nil || snap.Game.Params.Seconds != 45 {
		t.Fatalf("unexpected game: %+v", snap.Game)
	}
}

func TestDecode_SnapshotAbsentFieldsStayNil(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"snapshot","game":null}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	snap := msg.(Snapshot)
	if snap.Targets != nil || snap.Players != nil || snap.Game != nil {
		t.Fatalf("expected absent fields, got %+v", snap)
	}
}

func TestDecode_Announce(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"announce","targets":[{"system_id":"A","target_id":"1","active":true,"led_color":"#00ff00","led_time_ms":500}]}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	ann := msg.(Announce)
	if len(ann.Targets) != 1 || !bool(ann.Targets[0].Active) {
		t.Fatalf("unexpected announce: %+v", ann)
	}

	msg, err = Decode([]byte(`{"type":"announce","targets":[]}`))
	if err != nil {
		t.Fatalf("empty target list should decode: %v", err)
	}
	if ann := msg.(Announce); ann.Targets == nil || len(ann.Targets) != 0 {
		t.Fatalf("expected empty, non-nil targets: %#v", ann.Targets)
	}
}

func TestDecode_Hit(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"hit","system_id":"A","target_id":"1","scores_targets":[{"system_id":"A","target_id":"1","hits":1}]}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	hit := msg.(Hit)
	if hit.FeedText() != "A/1 hit" {
		t.Fatalf("FeedText() = %q", hit.FeedText())
	}
	if hit.ScoresPlayers != nil {
		t.Fatalf("expected absent player scores")
	}
}

func TestDecode_Unknown(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"pong","x":1}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	u, ok := msg.(Unknown)
	if !ok || u.Type() != "pong" || len(u.Raw) == 0 {
		t.Fatalf("unexpected result: %#v", msg)
	}
	if err := Validate(u); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("Validate(Unknown) = %v, want ErrUnknownType", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	frames := map[string]string{
		"empty":             ``,
		"not json":          `hello`,
		"array":             `[1,2,3]`,
		"truncated":         `{"type":"snapshot"`,
		"no type":           `{"targets":[]}`,
		"numeric type":      `{"type":5}`,
		"hit no scores":     `{"type":"hit","system_id":"A","target_id":"1"}`,
		"hit bare":          `{"type":"hit"}`,
		"hit no target":     `{"type":"hit","scores_targets":[]}`,
		"announce no list":  `{"type":"announce"}`,
		"announce bad list": `{"type":"announce","targets":{"a":1}}`,
		"duplicate target":  `{"type":"announce","targets":[{"system_id":"A","target_id":"1"},{"system_id":"A","target_id":"1"}]}`,
		"keyless target":    `{"type":"announce","targets":[{"system_id":"A"}]}`,
		"duplicate player":  `{"type":"snapshot","players":[{"id":1,"name":"a"},{"id":1,"name":"b"}]}`,
		"player without id": `{"type":"snapshot","players":[{"name":"a"}]}`,
		"negative hits":     `{"type":"hit","system_id":"A","target_id":"1","scores_targets":[{"system_id":"A","target_id":"1","hits":-1}]}`,
		"bad active":        `{"type":"announce","targets":[{"system_id":"A","target_id":"1","active":"yes"}]}`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			msg, err := Decode([]byte(frame))
			if err == nil {
				t.Fatalf("expected error, got %#v", msg)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("error %v does not match ErrMalformed", err)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error %T is not a *DecodeError", err)
			}
		})
	}
}

func TestValidatePlayers(t *testing.T) {
	if err := ValidatePlayers([]domain.Player{{ID: "1", Name: "Alex"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePlayers([]domain.Player{{ID: "", Name: "Alex"}}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

// The server accepts any name, so an empty one must not block a snapshot
func TestDecode_SnapshotAllowsEmptyPlayerName(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"snapshot","targets":[{"system_id":"A","target_id":"1"}],"players":[{"id":3,"name":""}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	snap := msg.(Snapshot)
	if len(snap.Players) != 1 || snap.Players[0].ID != "3" || snap.Players[0].Name != "" {
		t.Errorf("players = %+v", snap.Players)
	}
	if len(snap.Targets) != 1 {
		t.Errorf("targets = %+v", snap.Targets)
	}
	if err := ValidatePlayers(snap.Players); err != nil {
		t.Errorf("ValidatePlayers: %v", err)
	}
}
