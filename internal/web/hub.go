package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/status"
	"github.com/wagw/wagw/internal/wa"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	clientBufSize  = 32
	maxInboundSize = 512
)

// Frame is one websocket push to a client.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub fans session events out to websocket clients. Delivery mirrors the
// bus: non-blocking, and a client that cannot keep up loses frames rather
// than stalling the rest.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The daemon binds to loopback; same-origin checks do not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Run translates bus events into websocket frames until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, b *bus.Bus) {
	sessionEvents, unsubSession := b.Subscribe("session.", 64)
	defer unsubSession()
	messageEvents, unsubMessages := b.Subscribe("message.", 64)
	defer unsubMessages()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case evt := <-sessionEvents:
			switch evt.Kind {
			case "session.status_changed":
				if change, ok := evt.Payload.(status.StatusChange); ok {
					h.Broadcast("status", map[string]string{
						"from": string(change.From),
						"to":   string(change.To),
					})
				}
			case "session.qr":
				if code, ok := evt.Payload.(string); ok {
					h.Broadcast("qr", map[string]string{"code": code})
				}
			}
		case evt := <-messageEvents:
			if msg, ok := evt.Payload.(*wa.Inbound); ok {
				h.Broadcast("message", map[string]any{
					"id":        msg.ID,
					"sender":    msg.Sender,
					"push_name": msg.PushName,
					"content":   msg.Content,
					"kind":      msg.Kind,
					"timestamp": msg.ReceivedAt.UnixMilli(),
				})
			}
		}
	}
}

// Broadcast sends one frame to every connected client.
func (h *Hub) Broadcast(frameType string, payload any) {
	data, err := json.Marshal(Frame{Type: frameType, Payload: payload})
	if err != nil {
		h.logger.Error("marshal websocket frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("websocket client lagging, frame dropped", zap.String("client", c.id))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request into a hub connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBufSize),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("websocket client connected", zap.String("client", c.id))

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// readPump discards inbound frames; the socket is push-only. It exists to
// consume control messages and to notice the peer going away.
func (h *Hub) readPump(c *client) {
	defer h.detach(c)
	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.logger.Debug("websocket client disconnected",
				zap.String("client", c.id), zap.Error(err))
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.detach(c)
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.detach(c)
	}
}
