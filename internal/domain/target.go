package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// LED duration bounds accepted by the range hardware
const (
	MinLEDTimeMs     = 50
	MaxLEDTimeMs     = 5000
	DefaultLEDTimeMs = 1000
	DefaultLEDColor  = "#ff0000"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// IsHexColor reports whether s has the #RRGGBB form
func IsHexColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// TargetKey identifies a target on the wire. A target is never addressed
// by a single flat id.
type TargetKey struct {
	SystemID string `json:"system_id"`
	TargetID string `json:"target_id"`
}

// String returns the "system/target" form used in the hit feed
func (k TargetKey) String() string {
	return k.SystemID + "/" + k.TargetID
}

// Valid reports whether both halves of the key are present
func (k TargetKey) Valid() bool {
	return k.SystemID != "" && k.TargetID != ""
}

// ParseTargetKey parses the "system/target" form
func ParseTargetKey(s string) (TargetKey, error) {
	sys, tgt, ok := strings.Cut(strings.TrimSpace(s), "/")
	k := TargetKey{SystemID: sys, TargetID: tgt}
	if !ok || !k.Valid() || strings.Contains(tgt, "/") {
		return TargetKey{}, fmt.Errorf("invalid target %q (want system/target)", s)
	}
	return k, nil
}

// Target represents a physical target as reported by the server
type Target struct {
	SystemID  string  `json:"system_id"`
	TargetID  string  `json:"target_id"`
	Name      string  `json:"name,omitempty"`
	Active    Flag    `json:"active"`
	LEDColor  string  `json:"led_color"`
	LEDTimeMs int     `json:"led_time_ms"`
	LastSeen  float64 `json:"last_seen,omitempty"` // unix seconds
}

// Key returns the target's identity
func (t Target) Key() TargetKey {
	return TargetKey{SystemID: t.SystemID, TargetID: t.TargetID}
}

// DisplayColor returns the LED colour, or the fallback when the server
// reports a vendor-specific value
func (t Target) DisplayColor() string {
	if IsHexColor(t.LEDColor) {
		return t.LEDColor
	}
	return DefaultLEDColor
}

// DisplayTimeMs returns the LED duration, or the default when unset
func (t Target) DisplayTimeMs() int {
	if t.LEDTimeMs > 0 {
		return t.LEDTimeMs
	}
	return DefaultLEDTimeMs
}

// TargetScore is the hit count for one target
type TargetScore struct {
	SystemID string `json:"system_id"`
	TargetID string `json:"target_id"`
	Hits     int    `json:"hits"`
}

// Key returns the scored target's identity
func (s TargetScore) Key() TargetKey {
	return TargetKey{SystemID: s.SystemID, TargetID: s.TargetID}
}

// Flag is a boolean that also accepts the 0/1 integers SQLite-backed
// servers emit for boolean columns
type Flag bool

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true", "1":
		*f = true
		return nil
	case "false", "0", "null":
		*f = false
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := n.Float64()
		if err == nil {
			*f = v != 0
			return nil
		}
	}
	return fmt.Errorf("invalid boolean value %s", data)
}
