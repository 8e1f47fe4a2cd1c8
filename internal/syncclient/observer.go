package syncclient

import (
	"github.com/ernie/range-dashboard/internal/mirror"
	"github.com/ernie/range-dashboard/internal/protocol"
	"github.com/ernie/range-dashboard/internal/transport"
)

// Observer receives diagnostics from the event loop. Calls are made from
// the loop goroutine and must not block for long.
type Observer interface {
	ConnectionOpened(info transport.ConnInfo)
	ConnectionClosed(info transport.ConnInfo, err error)
	FrameApplied(info transport.ConnInfo, frame []byte, msg protocol.Message, change mirror.Change)
	FrameRejected(info transport.ConnInfo, frame []byte, err error)
	FrameStale(info transport.ConnInfo, frame []byte)
}

type observers []Observer

func (o observers) ConnectionOpened(info transport.ConnInfo) {
	for _, ob := range o {
		ob.ConnectionOpened(info)
	}
}

func (o observers) ConnectionClosed(info transport.ConnInfo, err error) {
	for _, ob := range o {
		ob.ConnectionClosed(info, err)
	}
}

func (o observers) FrameApplied(info transport.ConnInfo, frame []byte, msg protocol.Message, change mirror.Change) {
	for _, ob := range o {
		ob.FrameApplied(info, frame, msg, change)
	}
}

func (o observers) FrameRejected(info transport.ConnInfo, frame []byte, err error) {
	for _, ob := range o {
		ob.FrameRejected(info, frame, err)
	}
}

func (o observers) FrameStale(info transport.ConnInfo, frame []byte) {
	for _, ob := range o {
		ob.FrameStale(info, frame)
	}
}
