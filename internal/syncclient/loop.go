package syncclient

import (
	"errors"

	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/protocol"
	"github.com/ernie/range-dashboard/internal/transport"
)

type event interface{ isEvent() }

type openedEvent struct{ info transport.ConnInfo }

func (openedEvent) isEvent() {}

type closedEvent struct {
	info transport.ConnInfo
	err  error
}

func (closedEvent) isEvent() {}

type frameEvent struct {
	info transport.ConnInfo
	data []byte
}

func (frameEvent) isEvent() {}

// playersEvent carries the authoritative list from a player command
type playersEvent struct {
	players []domain.Player
	reply   chan error
}

func (playersEvent) isEvent() {}

func (c *Client) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.inbox:
			switch ev := ev.(type) {
			case openedEvent:
				c.handleOpen(ev.info)
			case closedEvent:
				c.handleClose(ev.info, ev.err)
			case frameEvent:
				c.handleFrame(ev.info, ev.data)
			case playersEvent:
				ev.reply <- c.mirror.ReplacePlayers(ev.players)
			}
		}
	}
}

func (c *Client) handleOpen(info transport.ConnInfo) {
	if info.Generation < c.current.Generation {
		c.stale.Add(1)
		c.logger.Printf("Ignoring late open from connection %d (current %d)", info.Generation, c.current.Generation)
		return
	}
	c.current = info
	c.open = true
	c.observers.ConnectionOpened(info)
	c.setStatus(domain.StatusConnected)
}

// handleClose only changes ownership and status for the current
// connection or a newer attempt that failed before opening
func (c *Client) handleClose(info transport.ConnInfo, err error) {
	switch {
	case info.Generation > c.current.Generation:
	case info.Generation == c.current.Generation && info.ID == c.current.ID:
	default:
		c.stale.Add(1)
		c.logger.Printf("Ignoring late close from connection %d (current %d)", info.Generation, c.current.Generation)
		return
	}
	c.current = info
	c.open = false
	c.observers.ConnectionClosed(info, err)
	c.setStatus(domain.StatusDisconnected)
}

// isCurrent reports whether frames from info may touch the mirror
func (c *Client) isCurrent(info transport.ConnInfo) bool {
	return c.open && info.ID == c.current.ID && info.Generation == c.current.Generation
}

func (c *Client) handleFrame(info transport.ConnInfo, data []byte) {
	if !c.isCurrent(info) {
		c.stale.Add(1)
		c.observers.FrameStale(info, data)
		return
	}

	msg, err := protocol.Decode(data)
	if err == nil {
		if u, ok := msg.(protocol.Unknown); ok {
			err = protocol.Validate(u)
		}
	}
	if err != nil {
		c.reject(info, data, err)
		return
	}

	change, err := c.mirror.Apply(msg)
	if err != nil {
		c.reject(info, data, err)
		return
	}
	c.applied.Add(1)
	c.observers.FrameApplied(info, data, msg, change)
}

func (c *Client) reject(info transport.ConnInfo, data []byte, err error) {
	c.rejected.Add(1)
	if errors.Is(err, protocol.ErrUnknownType) {
		c.logger.Printf("Ignoring frame on connection %d: %v", info.Generation, err)
	} else {
		c.logger.Printf("Dropping malformed frame on connection %d: %v", info.Generation, err)
	}
	c.observers.FrameRejected(info, data, err)
}

func (c *Client) setStatus(s domain.Status) {
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
	if c.onStatus != nil {
		c.onStatus(s)
	}
}
