package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPath is the real-time channel's path on the dashboard origin
const DefaultPath = "/ws"

// Endpoint derives the WebSocket URL from the dashboard's origin. An https
// origin selects wss, http selects ws. Any path on the origin is replaced.
func Endpoint(origin, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return "", fmt.Errorf("parsing origin %q: %w", origin, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String(), nil
}
