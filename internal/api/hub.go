package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaocai218/cultivation-world-simulator/internal/sim"
)

const (
	writeWait      = 5 * time.Second
	clientBacklog  = 16
	maxWSClientCap = 64
)

// Hub fans tick frames and control notices out to websocket subscribers.
// Slow clients are dropped rather than allowed to stall the broadcast.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]bool
}

// Frame is the envelope every websocket message travels in. Type is "tick"
// for the per-month frame and "notice" for one-shot control messages.
type Frame struct {
	Type    string           `json:"type"`
	Tick    *sim.TickSummary `json:"tick,omitempty"`
	Kind    string           `json:"kind,omitempty"`
	Message string           `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan Frame
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is served from anywhere during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]bool),
	}
}

// HandleWS upgrades the connection and streams tick frames until the client
// goes away.
func (h *Hub) HandleWS(rw http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := len(h.clients) >= maxWSClientCap
	h.mu.Unlock()
	if full {
		http.Error(rw, "too many subscribers", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan Frame, clientBacklog)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// BroadcastTick pushes a tick frame to every subscriber. Wire it to
// Simulator.OnTick.
func (h *Hub) BroadcastTick(t sim.TickSummary) {
	h.broadcast(Frame{Type: "tick", Tick: &t})
}

// BroadcastNotice pushes a one-shot control message, such as the LLM
// gateway going unhealthy. Wire it to Simulator.OnNotice.
func (h *Hub) BroadcastNotice(kind, message string) {
	h.broadcast(Frame{Type: "notice", Kind: kind, Message: message})
}

func (h *Hub) broadcast(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- f:
		default:
			// Backlog full: the client cannot keep up with the tick rate.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for t := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(t); err != nil {
			h.drop(c)
			return
		}
	}
}

// readLoop discards inbound frames; the stream is one way. Its real job is
// noticing the close.
func (h *Hub) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}
