package realtime

import (
	"strconv"
	"time"
)

// GroupName returns the broadcast group of a webinar: its id in decimal.
func GroupName(webinarID int64) string {
	return strconv.FormatInt(webinarID, 10)
}

// Router addresses webinar groups and individual connections with typed events.
type Router struct {
	hub *Hub
}

// NewRouter creates a router on top of a hub.
func NewRouter(hub *Hub) *Router {
	return &Router{hub: hub}
}

// Join adds a connection to a webinar group.
func (r *Router) Join(webinarID int64, connID string) bool {
	return r.hub.AddToGroup(GroupName(webinarID), connID)
}

// Leave removes a connection from a webinar group.
func (r *Router) Leave(webinarID int64, connID string) {
	r.hub.RemoveFromGroup(GroupName(webinarID), connID)
}

// Broadcast sends any event to a webinar group.
func (r *Router) Broadcast(webinarID int64, event string, payload interface{}) {
	r.hub.Broadcast(GroupName(webinarID), event, payload)
}

// BroadcastCounts sends CountsUpdated to a webinar group.
func (r *Router) BroadcastCounts(webinarID int64, viewers, participants int) {
	r.Broadcast(webinarID, EventCountsUpdated, CountsUpdated{
		Version:      PayloadVersion,
		WebinarID:    webinarID,
		Viewers:      viewers,
		Participants: participants,
	})
}

// BroadcastOverlay sends an Overlay to a webinar group.
func (r *Router) BroadcastOverlay(webinarID int64, o Overlay) {
	o.Version = PayloadVersion
	o.WebinarID = webinarID
	if o.SentAt.IsZero() {
		o.SentAt = time.Now().UTC()
	}
	r.Broadcast(webinarID, EventOverlay, o)
}

// BroadcastChat sends a ChatMessage to a webinar group.
func (r *Router) BroadcastChat(webinarID int64, m ChatMessage) {
	m.Version = PayloadVersion
	m.WebinarID = webinarID
	r.Broadcast(webinarID, EventChatMessage, m)
}

// BroadcastUserDisconnected tells a webinar group that a participant left.
func (r *Router) BroadcastUserDisconnected(webinarID, userID int64) {
	r.Broadcast(webinarID, EventUserDisconnected, UserDisconnected{
		Version:   PayloadVersion,
		WebinarID: webinarID,
		UserID:    userID,
		Message:   "user disconnected",
	})
}

// SendToConnection sends an event to one connection.
func (r *Router) SendToConnection(connID, event string, payload interface{}) bool {
	return r.hub.SendToClient(connID, event, payload)
}

// Disconnect force-closes one connection with a reason and a redirect location.
func (r *Router) Disconnect(connID, reason, newLocation string) bool {
	return r.hub.Disconnect(connID, reason, newLocation)
}

// LocalGroupSize returns how many connections of this instance are in a webinar group.
func (r *Router) LocalGroupSize(webinarID int64) int {
	return r.hub.GroupSize(GroupName(webinarID))
}
