package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PlayerID is an opaque player identifier. Servers send it as a number or a
// string; both decode to the same textual form.
type PlayerID string

// UnmarshalJSON implements json.Unmarshaler
func (id *PlayerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PlayerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid player id %s", data)
	}
	*id = PlayerID(n.String())
	return nil
}

// MarshalJSON emits integer ids as JSON numbers so integer-keyed servers
// accept them back
func (id PlayerID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Player represents a registered shooter
type Player struct {
	ID        PlayerID `json:"id"`
	Name      string   `json:"name"`
	CreatedAt float64  `json:"created_at,omitempty"` // unix seconds
}

// PlayerScore is the hit count for one player. Rows are keyed by player id
// when the server knows it, otherwise by name.
type PlayerScore struct {
	PlayerID PlayerID `json:"player_id,omitempty"`
	Name     string   `json:"name"`
	Hits     int      `json:"hits"`
}

// Label returns the text used to show the score row
func (s PlayerScore) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.PlayerID)
}
