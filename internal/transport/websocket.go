package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	defaultReadLimit = 4 << 20
)

// Socket is one open real-time connection
type Socket interface {
	// Read blocks until the next data frame arrives or the connection fails
	Read() ([]byte, error)
	Close() error
}

// Dialer opens sockets
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// WebSocketDialer dials with gorilla/websocket
type WebSocketDialer struct {
	Dialer      *websocket.Dialer
	Header      http.Header
	ReadLimit   int64         // maximum frame size; 0 uses 4 MiB
	ReadTimeout time.Duration // 0 disables the read deadline
}

// Dial implements Dialer
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)

	s := &wsSocket{conn: conn, timeout: d.ReadTimeout}
	conn.SetPingHandler(func(data string) error {
		s.extendDeadline()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		s.extendDeadline()
		return nil
	})
	return s, nil
}

type wsSocket struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSocket) extendDeadline() {
	if s.timeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.timeout))
	}
}

func (s *wsSocket) Read() ([]byte, error) {
	s.extendDeadline()
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSocket) Close() error {
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}

// IsNormalClose reports whether err is an orderly close from the server
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
