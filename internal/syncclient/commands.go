package syncclient

import (
	"context"
	"fmt"

	"github.com/ernie/range-dashboard/internal/command"
	"github.com/ernie/range-dashboard/internal/domain"
)

// SelectTarget arms or disarms a target. The mirror changes when the
// server's announce arrives.
func (c *Client) SelectTarget(ctx context.Context, key domain.TargetKey, active bool) error {
	return c.commands.SelectTarget(ctx, key, active)
}

// SetLED sets a target's hit colour and duration. The values are checked
// as hints only; the server decides.
func (c *Client) SetLED(ctx context.Context, key domain.TargetKey, color string, timeMs int) error {
	return c.commands.SetLED(ctx, key, color, timeMs)
}

// AddPlayer registers a player and installs the returned roster in the
// mirror
func (c *Client) AddPlayer(ctx context.Context, name string) ([]domain.Player, error) {
	players, err := c.commands.AddPlayer(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.replacePlayers(ctx, players); err != nil {
		return nil, fmt.Errorf("adding player: %w", err)
	}
	return players, nil
}

// RemovePlayer deletes a player and installs the returned roster in the
// mirror
func (c *Client) RemovePlayer(ctx context.Context, id domain.PlayerID) ([]domain.Player, error) {
	players, err := c.commands.RemovePlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.replacePlayers(ctx, players); err != nil {
		return nil, fmt.Errorf("removing player: %w", err)
	}
	return players, nil
}

// StartGame starts a game. The returned game is for immediate display;
// the mirror's game changes with the next snapshot.
func (c *Client) StartGame(ctx context.Context, req command.StartGameRequest) (*domain.Game, error) {
	return c.commands.StartGame(ctx, req)
}

// StopGame ends the active game. A nil game means none is running.
func (c *Client) StopGame(ctx context.Context) (*domain.Game, error) {
	return c.commands.StopGame(ctx)
}

// replacePlayers hands a roster to the loop and waits for it to be applied
func (c *Client) replacePlayers(ctx context.Context, players []domain.Player) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- playersEvent{players: players, reply: reply}:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
