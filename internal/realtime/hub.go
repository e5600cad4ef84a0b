package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Publisher relays a group broadcast to every instance, this one included.
type Publisher interface {
	Publish(group, event string, payload []byte) error
}

// Subscriber receives group broadcasts published by any instance.
type Subscriber interface {
	Subscribe(group string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// DefaultSubscribeRetry spaces backplane subscribe attempts for a group after a failure.
const DefaultSubscribeRetry = 5 * time.Second

// Hub tracks open connections and their group memberships.
// With a backplane configured, a group with a live subscription gets its broadcasts
// through the subscription only, so each client receives a message once. A group
// whose subscribe failed is delivered locally after publishing and resubscribed later.
type Hub struct {
	clients map[string]*Client
	groups  map[string]map[string]*Client
	subs    map[string]func()
	// pending marks groups with a Subscribe call in flight.
	pending map[string]bool
	// retryAt holds the earliest next subscribe attempt for groups whose subscribe failed.
	retryAt map[string]time.Time
	mu      sync.RWMutex
	pub     Publisher
	sub     Subscriber
	logger  *zap.Logger

	subscribeRetry time.Duration
	now            func() time.Time
}

// NewHub creates a hub. pub and sub may be nil for a single-instance deployment.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
		subs:    make(map[string]func()),
		pending: make(map[string]bool),
		retryAt: make(map[string]time.Time),
		pub:     pub,
		sub:     sub,
		logger:  logger,

		subscribeRetry: DefaultSubscribeRetry,
		now:            time.Now,
	}
}

// Register makes a connection addressable by id. It belongs to no group yet.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("connection_id", c.ID))
}

// Unregister forgets a connection and drops it from every group it joined.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	for group := range c.groups {
		h.removeLocked(group, c.ID)
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("connection_id", c.ID))
}

// AddToGroup adds a registered connection to a group. Returns false if the connection is unknown.
func (h *Hub) AddToGroup(group, connID string) bool {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return false
	}
	members := h.groups[group]
	if members == nil {
		members = make(map[string]*Client)
		h.groups[group] = members
	}
	members[connID] = c
	c.groups[group] = struct{}{}
	h.mu.Unlock()

	h.ensureSubscribed(group)
	return true
}

// RemoveFromGroup removes a connection from a group. Unknown pairs are ignored.
func (h *Hub) RemoveFromGroup(group, connID string) {
	h.mu.Lock()
	h.removeLocked(group, connID)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(group, connID string) {
	members, ok := h.groups[group]
	if !ok {
		return
	}
	if c, ok := members[connID]; ok {
		delete(c.groups, group)
		delete(members, connID)
	}
	if len(members) == 0 {
		delete(h.groups, group)
		delete(h.retryAt, group)
		if cancel, ok := h.subs[group]; ok {
			cancel()
			delete(h.subs, group)
		}
	}
}

// ensureSubscribed reports whether the group's broadcasts reach this instance through
// the backplane, subscribing first when the group has local members and no subscription.
// The Subscribe round trip runs without holding h.mu.
func (h *Hub) ensureSubscribed(group string) bool {
	if h.sub == nil {
		return false
	}
	h.mu.Lock()
	if _, ok := h.subs[group]; ok {
		h.mu.Unlock()
		return true
	}
	if h.pending[group] || len(h.groups[group]) == 0 || h.now().Before(h.retryAt[group]) {
		h.mu.Unlock()
		return false
	}
	h.pending[group] = true
	h.mu.Unlock()

	cancel, err := h.sub.Subscribe(group, func(event string, payload []byte) {
		h.broadcastLocal(group, event, payload)
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, group)
	if err != nil {
		h.retryAt[group] = h.now().Add(h.subscribeRetry)
		h.logger.Warn("backplane subscribe failed, delivering locally", zap.String("group", group), zap.Error(err))
		return false
	}
	delete(h.retryAt, group)
	if len(h.groups[group]) == 0 {
		cancel()
		return false
	}
	h.subs[group] = cancel
	return true
}

// GroupSize returns the number of local connections in a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Broadcast sends an event to every member of a group. Delivery is best effort.
func (h *Hub) Broadcast(group, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	if h.pub == nil {
		h.broadcastLocal(group, event, data)
		return
	}
	subscribed := h.ensureSubscribed(group)
	if err := h.pub.Publish(group, event, data); err != nil {
		h.logger.Warn("backplane publish failed, delivering locally", zap.String("group", group), zap.Error(err))
		h.broadcastLocal(group, event, data)
		return
	}
	if !subscribed {
		h.broadcastLocal(group, event, data)
	}
}

func (h *Hub) broadcastLocal(group, event string, data []byte) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	members := make([]*Client, 0, len(h.groups[group]))
	for _, c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	for _, c := range members {
		if !c.enqueue(msg) {
			h.logger.Debug("send buffer full, dropping", zap.String("connection_id", c.ID), zap.String("event", event))
		}
	}
}

// SendToClient sends an event to one local connection. Returns false if it is unknown or its buffer is full.
func (h *Hub) SendToClient(connID, event string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal direct message", zap.String("event", event), zap.Error(err))
		return false
	}
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.enqueue(WSMessage{Event: event, Data: data})
}

// Disconnect sends ForceDisconnect to a local connection and then closes it after queued messages flush.
func (h *Hub) Disconnect(connID, reason, newLocation string) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	h.SendToClient(connID, EventForceDisconnect, ForceDisconnect{
		Version:     PayloadVersion,
		Reason:      reason,
		NewLocation: newLocation,
	})
	c.Close()
	return true
}
