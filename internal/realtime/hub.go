package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Publisher forwards an event to other instances.
type Publisher interface {
	Publish(event string, payload []byte) error
}

// Subscriber delivers events published by other instances.
type Subscriber interface {
	Subscribe(handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub tracks the connected ad pages and fans events out to them.
// With a Publisher/Subscriber pair, events also reach pages connected to other instances.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	subMu   sync.Mutex // serializes Subscribe calls
	logger  *zap.Logger
	pub     Publisher
	sub     Subscriber
	unsub   func()
}

// NewHub creates a hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		pub:     pub,
		sub:     sub,
	}
}

// Register adds a client. While no cross-instance subscription is active,
// each Register tries to start one.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ad page connected", zap.String("client_id", c.ID), zap.Int("clients", count))
	h.subscribe()
}

func (h *Hub) subscribe() {
	if h.sub == nil {
		return
	}
	h.subMu.Lock()
	defer h.subMu.Unlock()

	h.mu.RLock()
	active := h.unsub != nil
	h.mu.RUnlock()
	if active {
		return
	}

	cancel, err := h.sub.Subscribe(func(event string, payload []byte) {
		h.broadcastLocal(event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("ads feed subscribe failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		// every page left while subscribing
		cancel()
		return
	}
	h.unsub = cancel
}

// Unregister removes a client and closes its send channel. The last client cancels the subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	if len(h.clients) == 0 && h.unsub != nil {
		h.unsub()
		h.unsub = nil
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ad page disconnected", zap.String("client_id", c.ID), zap.Int("clients", count))
}

// ClientCount returns the number of connected pages on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to local pages and publishes it for other instances.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("ads feed marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.broadcastLocal(event, data)
	if h.pub != nil {
		if err := h.pub.Publish(event, data); err != nil {
			h.logger.Warn("ads feed publish failed", zap.String("event", event), zap.Error(err))
		}
	}
}

func (h *Hub) broadcastLocal(event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}
