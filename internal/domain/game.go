package domain

import (
	"encoding/json"
	"fmt"
)

// GameMode enumerates the supported game types
type GameMode string

const (
	ModeRaceToN    GameMode = "race_to_n"
	ModeTimeAttack GameMode = "time_attack"
	ModeFreePlay   GameMode = "free_play"
)

// Default mode parameters used when the operator leaves them blank
const (
	DefaultRaceTarget = 10
	DefaultTimeAttack = 30
)

// GameParams holds mode-specific settings
type GameParams struct {
	N       int `json:"n,omitempty"`       // race_to_n: hits needed
	Seconds int `json:"seconds,omitempty"` // time_attack: duration
}

// Game represents the active game, if any
type Game struct {
	ID        int64      `json:"id,omitempty"`
	Mode      GameMode   `json:"mode"`
	Params    GameParams `json:"params"`
	PlayerIDs []PlayerID `json:"player_ids,omitempty"`
	StartedTS float64    `json:"started_ts,omitempty"`
	EndedTS   *float64   `json:"ended_ts,omitempty"`
	Active    Flag       `json:"active"`
}

// UnmarshalJSON accepts params either as an object or as the params_json
// string column stored by the server
func (g *Game) UnmarshalJSON(data []byte) error {
	type plain Game
	var aux struct {
		plain
		ParamsJSON *string `json:"params_json"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*g = Game(aux.plain)
	if aux.ParamsJSON != nil && *aux.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(*aux.ParamsJSON), &g.Params); err != nil {
			return fmt.Errorf("parsing params_json: %w", err)
		}
	}
	return nil
}

// Describe returns a short label for the game
func (g *Game) Describe() string {
	if g == nil {
		return "No active game"
	}
	switch g.Mode {
	case ModeRaceToN:
		return fmt.Sprintf("Active: %s (first to %d)", g.Mode, g.Params.N)
	case ModeTimeAttack:
		return fmt.Sprintf("Active: %s (%ds)", g.Mode, g.Params.Seconds)
	default:
		return fmt.Sprintf("Active: %s", g.Mode)
	}
}
