package rangetest

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient is one connected dashboard
type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

// hub fans push frames out to every connected dashboard
type hub struct {
	logger     *log.Logger
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	drop       chan chan struct{}
	done       chan struct{}
	mu         sync.RWMutex
}

func newHub(logger *log.Logger) *hub {
	return &hub{
		logger:     logger,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		drop:       make(chan chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.conn.Close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Printf("WebSocket client connected (%d total)", h.count())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Printf("WebSocket client disconnected (%d total)", h.count())

		case reply := <-h.drop:
			h.mu.Lock()
			for client := range h.clients {
				client.conn.Close()
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			close(reply)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Printf("WebSocket client buffer full, dropping frame")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish sends a frame to all clients, in order
func (h *hub) publish(frame []byte) {
	select {
	case h.broadcast <- frame:
	case <-h.done:
	}
}

func (h *hub) publishJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Error marshaling frame: %v", err)
		return
	}
	h.publish(data)
}

// dropAll closes every connection without a close handshake
func (h *hub) dropAll() {
	reply := make(chan struct{})
	select {
	case h.drop <- reply:
		<-reply
	case <-h.done:
	}
}

// serve upgrades the request and queues first before any broadcast
func (h *hub) serve(w http.ResponseWriter, req *http.Request, first []byte) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	client.send <- first

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound frames and unregisters on close
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
