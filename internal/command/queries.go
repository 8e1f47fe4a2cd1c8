package command

import (
	"context"
	"net/http"

	"github.com/ernie/range-dashboard/internal/domain"
)

// These read-only queries never touch the mirror; they back one-shot CLI
// views when no push connection is open.

// ListTargets fetches GET /api/targets
func (c *Client) ListTargets(ctx context.Context) ([]domain.Target, error) {
	var resp struct {
		Targets []domain.Target `json:"targets"`
	}
	if err := c.do(ctx, "list targets", http.MethodGet, "/api/targets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Targets, nil
}

// ListPlayers fetches GET /api/players
func (c *Client) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	var resp playersResponse
	if err := c.do(ctx, "list players", http.MethodGet, "/api/players", nil, &resp); err != nil {
		return nil, err
	}
	return requirePlayers("list players", resp)
}

// TargetScores fetches GET /api/scores/targets
func (c *Client) TargetScores(ctx context.Context) ([]domain.TargetScore, error) {
	var resp struct {
		Scores []domain.TargetScore `json:"scores"`
	}
	if err := c.do(ctx, "target scores", http.MethodGet, "/api/scores/targets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

// PlayerScores fetches GET /api/scores/players
func (c *Client) PlayerScores(ctx context.Context) ([]domain.PlayerScore, error) {
	var resp struct {
		Scores []domain.PlayerScore `json:"scores"`
	}
	if err := c.do(ctx, "player scores", http.MethodGet, "/api/scores/players", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}
