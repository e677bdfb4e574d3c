package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"securitysystem/internal/alarm"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket message types
const (
	WSTypeSnapshot = "snapshot"
	WSTypeEvent    = "event"
	WSTypePing     = "ping"
	WSTypePong     = "pong"

	wsSendBufferSize = 32
	wsMaxMessageSize = 4096
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 10 * time.Second
)

// WSMessage is a message sent to a websocket client
type WSMessage struct {
	Type      string          `json:"type"`
	EventType string          `json:"event_type,omitempty"`
	Mode      string          `json:"mode,omitempty"`
	Origin    string          `json:"origin,omitempty"`
	Timestamp string          `json:"timestamp"`
	Payload   *alarm.Snapshot `json:"payload,omitempty"`
}

// SnapshotFunc returns the current controller state
type SnapshotFunc func() alarm.Snapshot

// Hub streams controller events to websocket clients. It implements
// effects.Collaborator.
type Hub struct {
	snapshot SnapshotFunc
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		// access is gated by the code check
		return true
	},
}

// NewHub creates a hub. snapshot supplies the state sent to a client when
// it connects.
func NewHub(snapshot SnapshotFunc, logger *zap.Logger) *Hub {
	return &Hub{
		snapshot: snapshot,
		logger:   logger.Named("websocket"),
		clients:  make(map[*wsClient]struct{}),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Handle broadcasts an event to every client
func (h *Hub) Handle(_ context.Context, ev alarm.Event) error {
	snap := ev.State
	return h.broadcast(WSMessage{
		Type:      WSTypeEvent,
		EventType: string(ev.Type),
		Mode:      string(ev.Mode),
		Origin:    string(ev.Origin),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   &snap,
	})
}

func (h *Hub) broadcast(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.trySend(data)
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
	h.register(c)

	if h.snapshot != nil {
		snap := h.snapshot()
		if data, err := json.Marshal(WSMessage{
			Type:      WSTypeSnapshot,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Payload:   &snap,
		}); err == nil {
			c.trySend(data)
		}
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("WebSocket client connected", zap.Int("clients", n))
}

// unregister removes c. Only the caller that removes it closes its send
// channel.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(c.send)
		h.logger.Debug("WebSocket client disconnected", zap.Int("clients", n))
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// trySend queues data without blocking. A client that cannot keep up is
// dropped.
func (c *wsClient) trySend(data []byte) {
	defer func() {
		// send may have been closed by a concurrent unregister
		_ = recover()
	}()

	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("WebSocket client too slow, disconnecting")
		go c.hub.unregister(c)
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	//nolint:errcheck // best effort
	c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		//nolint:errcheck // best effort
		c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err == nil && msg.Type == WSTypePing {
			reply, _ := json.Marshal(WSMessage{
				Type:      WSTypePong,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			c.trySend(reply)
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // write error is caught below
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if !ok {
				//nolint:errcheck // best effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // write error is caught below
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
