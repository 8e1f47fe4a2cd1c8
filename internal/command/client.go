// Package command sends operator intents to the range server's REST
// interface. It keeps no state of its own.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ernie/range-dashboard/internal/domain"
)

const maxErrorBody = 4096

// Client issues commands against the server's /api endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each request. The default is no timeout. It applies
// to a client given by WithHTTPClient in either order, without modifying
// the caller's client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the dashboard at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// BaseURL returns the server origin
func (c *Client) BaseURL() string { return c.baseURL }

// SelectTargetRequest is the body for POST /api/targets/select
type SelectTargetRequest struct {
	SystemID string `json:"system_id"`
	TargetID string `json:"target_id"`
	Active   bool   `json:"active"`
}

// LEDRequest is the body for POST /api/targets/{system_id}/{target_id}/led
type LEDRequest struct {
	Color  string `json:"color"`
	TimeMs int    `json:"time_ms"`
}

// PlayerRequest is the body for POST /api/players
type PlayerRequest struct {
	Name string `json:"name"`
}

// StartGameRequest is the body for POST /api/games/start
type StartGameRequest struct {
	Mode      domain.GameMode   `json:"mode"`
	Params    domain.GameParams `json:"params"`
	PlayerIDs []domain.PlayerID `json:"player_ids"`
}

type playersResponse struct {
	Players *[]domain.Player `json:"players"`
}

type gameResponse struct {
	GameID *int64       `json:"game_id,omitempty"`
	Game   *domain.Game `json:"game"`
}

// SelectTarget arms or disarms a target. The response is only an ack; the
// new selection arrives through the push channel.
func (c *Client) SelectTarget(ctx context.Context, key domain.TargetKey, active bool) error {
	body := SelectTargetRequest{SystemID: key.SystemID, TargetID: key.TargetID, Active: active}
	return c.do(ctx, "select target", http.MethodPost, "/api/targets/select", body, nil)
}

// SetLED sets a target's hit feedback colour and duration. The server may
// clamp or reject the values.
func (c *Client) SetLED(ctx context.Context, key domain.TargetKey, color string, timeMs int) error {
	path := fmt.Sprintf("/api/targets/%s/%s/led", url.PathEscape(key.SystemID), url.PathEscape(key.TargetID))
	return c.do(ctx, "set LED", http.MethodPost, path, LEDRequest{Color: color, TimeMs: timeMs}, nil)
}

// AddPlayer registers a player and returns the server's authoritative
// player list
func (c *Client) AddPlayer(ctx context.Context, name string) ([]domain.Player, error) {
	var resp playersResponse
	if err := c.do(ctx, "add player", http.MethodPost, "/api/players", PlayerRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return requirePlayers("add player", resp)
}

// RemovePlayer deletes a player and returns the server's authoritative
// player list
func (c *Client) RemovePlayer(ctx context.Context, id domain.PlayerID) ([]domain.Player, error) {
	var resp playersResponse
	path := "/api/players/" + url.PathEscape(string(id))
	if err := c.do(ctx, "remove player", http.MethodDelete, path, nil, &resp); err != nil {
		return nil, err
	}
	return requirePlayers("remove player", resp)
}

// StartGame starts a game. The returned game is a display hint; the
// authoritative state follows on the push channel.
func (c *Client) StartGame(ctx context.Context, req StartGameRequest) (*domain.Game, error) {
	if req.PlayerIDs == nil {
		req.PlayerIDs = []domain.PlayerID{}
	}
	var resp gameResponse
	if err := c.do(ctx, "start game", http.MethodPost, "/api/games/start", req, &resp); err != nil {
		return nil, err
	}
	if resp.Game != nil && resp.Game.ID == 0 && resp.GameID != nil {
		resp.Game.ID = *resp.GameID
	}
	return resp.Game, nil
}

// StopGame ends the active game. The returned value is normally nil.
func (c *Client) StopGame(ctx context.Context) (*domain.Game, error) {
	var resp gameResponse
	if err := c.do(ctx, "stop game", http.MethodPost, "/api/games/stop", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Game, nil
}

func requirePlayers(op string, resp playersResponse) ([]domain.Player, error) {
	if resp.Players == nil {
		return nil, fmt.Errorf("%s: response has no players list", op)
	}
	players := *resp.Players
	if players == nil {
		players = []domain.Player{}
	}
	return players, nil
}

// do sends one JSON request and decodes the JSON response into out, if set
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(op, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}
