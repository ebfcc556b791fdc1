package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Publisher publishes a user event to every API instance.
type Publisher interface {
	PublishUser(ctx context.Context, userID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to a user's events across instances.
type Subscriber interface {
	SubscribeUser(userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains user_id -> set of live connections on this instance.
// With Redis configured, events go through pub/sub so every instance delivers them once.
type Hub struct {
	// userID -> map[clientID]*Client
	users       map[uuid.UUID]map[string]*Client
	subs        map[uuid.UUID]func() // cancel Redis subscription per user
	subscribing map[uuid.UUID]bool
	mu          sync.RWMutex
	logger      *zap.Logger
	pub         Publisher
	sub         Subscriber
}

// NewHub creates a new hub. pub and sub may be nil for a single-instance deployment.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		users:       make(map[uuid.UUID]map[string]*Client),
		subs:        make(map[uuid.UUID]func()),
		subscribing: make(map[uuid.UUID]bool),
		logger:      logger,
		pub:         pub,
		sub:         sub,
	}
}

// Register adds a client. A user without a live Redis subscription gets one,
// so a failed attempt is retried by the user's next connection.
func (h *Hub) Register(c *Client) {
	userID := c.UserID
	h.mu.Lock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]*Client)
	}
	h.users[userID][c.ID] = c
	needSub := h.sub != nil && h.subs[userID] == nil && !h.subscribing[userID]
	if needSub {
		h.subscribing[userID] = true
	}
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", userID.String()))

	if needSub {
		h.subscribe(userID)
	}
}

// subscribe runs outside h.mu; the Redis round trip must not stall delivery.
func (h *Hub) subscribe(userID uuid.UUID) {
	cancel, err := h.sub.SubscribeUser(userID, func(event string, payload []byte) {
		h.SendToUser(userID, event, json.RawMessage(payload))
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribing, userID)
	if err != nil {
		h.logger.Warn("subscribe user channel failed", zap.Error(err), zap.String("user_id", userID.String()))
		return
	}
	if len(h.users[userID]) == 0 {
		// Every connection left while subscribing.
		cancel()
		return
	}
	h.subs[userID] = cancel
}

// Unregister removes a client. The last connection of a user cancels its Redis subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.users[c.UserID]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.users, c.UserID)
			if cancel, ok := h.subs[c.UserID]; ok {
				cancel()
				delete(h.subs, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// SendToUser delivers an event to the user's connections on this instance.
// Slow connections with a full buffer miss the event.
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload json.RawMessage) {
	msg := WSMessage{Event: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.users[userID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, event skipped", zap.String("client_id", c.ID))
		}
	}
}

// PublishUser routes an event to the user. With Redis it publishes only and the
// subscription callback performs delivery, so local clients see it once.
func (h *Hub) PublishUser(ctx context.Context, userID uuid.UUID, event string, payload []byte) error {
	if h.pub != nil {
		return h.pub.PublishUser(ctx, userID, event, payload)
	}
	h.SendToUser(userID, event, payload)
	return nil
}

// ConnectionCount returns the number of live connections of a user on this instance.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Close cancels every Redis subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cancel := range h.subs {
		cancel()
		delete(h.subs, id)
	}
}
