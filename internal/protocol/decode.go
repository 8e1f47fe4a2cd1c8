package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/ernie/range-dashboard/internal/domain"
)

type envelope struct {
	Type *string `json:"type"`
}

type snapshotFrame struct {
	Targets       []domain.Target      `json:"targets"`
	Players       []domain.Player      `json:"players"`
	ScoresTargets []domain.TargetScore `json:"scores_targets"`
	ScoresPlayers []domain.PlayerScore `json:"scores_players"`
	Game          *domain.Game         `json:"game"`
}

type announceFrame struct {
	Targets []domain.Target `json:"targets"`
}

type hitFrame struct {
	SystemID      string               `json:"system_id"`
	TargetID      string               `json:"target_id"`
	ScoresTargets []domain.TargetScore `json:"scores_targets"`
	ScoresPlayers []domain.PlayerScore `json:"scores_players"`
}

// Decode classifies one text frame. It returns a *DecodeError for frames
// that are not JSON objects, lack a type tag, or fail structural
// validation for their tag. Unrecognised tags decode to Unknown.
func Decode(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, malformed("", "frame is not a JSON object")
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	if env.Type == nil || *env.Type == "" {
		return nil, malformed("", "missing type tag")
	}
	tag := *env.Type

	var msg Message
	switch tag {
	case domain.MessageSnapshot:
		var f snapshotFrame
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, &DecodeError{Type: tag, Reason: "invalid payload", Err: err}
		}
		msg = Snapshot{
			Targets:       f.Targets,
			Players:       f.Players,
			ScoresTargets: f.ScoresTargets,
			ScoresPlayers: f.ScoresPlayers,
			Game:          f.Game,
		}
	case domain.MessageAnnounce:
		var f announceFrame
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, &DecodeError{Type: tag, Reason: "invalid payload", Err: err}
		}
		msg = Announce{Targets: f.Targets}
	case domain.MessageHit:
		var f hitFrame
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, &DecodeError{Type: tag, Reason: "invalid payload", Err: err}
		}
		msg = Hit{
			SystemID:      f.SystemID,
			TargetID:      f.TargetID,
			ScoresTargets: f.ScoresTargets,
			ScoresPlayers: f.ScoresPlayers,
		}
	default:
		raw := make([]byte, len(trimmed))
		copy(raw, trimmed)
		return Unknown{Tag: tag, Raw: raw}, nil
	}

	if err := Validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
