package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ernie/range-dashboard/internal/domain"
)

var validModes = map[domain.GameMode]bool{
	domain.ModeRaceToN: true, domain.ModeTimeAttack: true, domain.ModeFreePlay: true,
}

// ValidateMode checks if a game mode is supported
func ValidateMode(mode domain.GameMode) error {
	if !validModes[mode] {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return nil
}

// CheckLED applies the client-side limits for LED settings. The server is
// the authority; this only catches obvious operator mistakes early.
func CheckLED(color string, timeMs int) error {
	if !domain.IsHexColor(color) {
		return fmt.Errorf("%w: color %q is not #RRGGBB", ErrInvalidLED, color)
	}
	if timeMs < domain.MinLEDTimeMs || timeMs > domain.MaxLEDTimeMs {
		return fmt.Errorf("%w: time %dms outside [%d, %d]", ErrInvalidLED, timeMs, domain.MinLEDTimeMs, domain.MaxLEDTimeMs)
	}
	return nil
}

// ParseGameParams turns the operator's "key=value" text into parameters
// for mode. Missing or unparseable values fall back to the mode default.
func ParseGameParams(mode domain.GameMode, raw string) domain.GameParams {
	value := func(def int) int {
		_, v, ok := strings.Cut(raw, "=")
		if !ok {
			v = raw
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return n
	}

	switch mode {
	case domain.ModeRaceToN:
		return domain.GameParams{N: value(domain.DefaultRaceTarget)}
	case domain.ModeTimeAttack:
		return domain.GameParams{Seconds: value(domain.DefaultTimeAttack)}
	}
	return domain.GameParams{}
}
