package realtime

import (
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	sendBuffer   = 256
	mirrorBuffer = 1024
)

// Publisher mirrors broadcast messages to an external channel.
type Publisher interface {
	Publish(event string, payload []byte) error
}

// Hub tracks connected clients and fans outbound messages out to their send buffers.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	mirror  chan WSMessage
}

// NewHub creates a new WebSocket hub. When mirror is not nil broadcasts are
// published to it from a background goroutine.
func NewHub(logger *zap.Logger, mirror Publisher) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
	if mirror != nil {
		h.mirror = make(chan WSMessage, mirrorBuffer)
		go h.runMirror(mirror)
	}
	return h
}

func (h *Hub) runMirror(pub Publisher) {
	for msg := range h.mirror {
		if err := pub.Publish(msg.Event, msg.Data); err != nil {
			h.logger.Warn("mirror publish failed", zap.String("event", msg.Event), zap.Error(err))
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("conn_id", c.ID), zap.Int("clients", count))
}

// Unregister removes a client and closes its send buffer. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("conn_id", c.ID))
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver enqueues every message on its recipients' buffers in slice order.
// A full buffer drops the message for that client only.
func (h *Hub) Deliver(out []Outbound) {
	if len(out) == 0 {
		return
	}
	h.mu.RLock()
	for _, o := range out {
		if o.Target.IsBroadcast() {
			for _, c := range h.clients {
				h.enqueue(c, o.Message)
			}
			continue
		}
		if c, ok := h.clients[o.Target.ConnID]; ok {
			h.enqueue(c, o.Message)
		}
	}
	h.mu.RUnlock()

	if h.mirror == nil {
		return
	}
	for _, o := range out {
		if !o.Target.IsBroadcast() {
			continue
		}
		select {
		case h.mirror <- o.Message:
		default:
			h.logger.Warn("mirror buffer full, dropping message", zap.String("event", o.Message.Event))
		}
	}
}

func (h *Hub) enqueue(c *Client, msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("client send buffer full, dropping message",
			zap.String("conn_id", c.ID), zap.String("event", msg.Event))
	}
}
