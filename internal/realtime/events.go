package realtime

import (
	"encoding/json"
	"time"
)

// Server -> client event names.
const (
	EventConnected        = "Connected"
	EventCountsUpdated    = "CountsUpdated"
	EventOverlay          = "Overlay"
	EventChatMessage      = "ChatMessage"
	EventForceDisconnect  = "ForceDisconnect"
	EventUserDisconnected = "UserDisconnected"
	EventPong             = "Pong"
	EventError            = "Error"
	EventPollCreated      = "PollCreated"
	EventPollClosed       = "PollClosed"
	EventQuestionAsked    = "QuestionAsked"
)

// Client -> server invocation names.
const (
	InvokeBroadcastOverlay = "BroadcastOverlay"
	InvokeSendChatMessage  = "SendChatMessage"
	InvokeGetViewerCount   = "GetViewerCount"
	InvokePing             = "Ping"
)

// PayloadVersion is stamped on every typed payload so clients can detect schema changes.
const PayloadVersion = 1

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Connected is sent to a client right after the upgrade.
type Connected struct {
	Version      int    `json:"v"`
	ConnectionID string `json:"connectionId"`
	WebinarID    int64  `json:"webinarId,omitempty"`
	UserID       int64  `json:"userId,omitempty"`
	Role         string `json:"role,omitempty"`
	Message      string `json:"message"`
}

// CountsUpdated carries the live presence counts of a webinar.
type CountsUpdated struct {
	Version      int   `json:"v"`
	WebinarID    int64 `json:"webinarId"`
	Viewers      int   `json:"viewers"`
	Participants int   `json:"participants"`
}

// Overlay kinds understood by the player. Anything else travels through Data untouched.
const (
	OverlayText   = "text"
	OverlayImage  = "image"
	OverlayTicker = "ticker"
	OverlayClear  = "clear"
	OverlayCustom = "custom"
)

// Overlay is host-supplied content drawn over the stream.
type Overlay struct {
	Version   int             `json:"v"`
	WebinarID int64           `json:"webinarId"`
	Kind      string          `json:"kind"`
	Text      string          `json:"text,omitempty"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	SentBy    int64           `json:"sentBy"`
	SentAt    time.Time       `json:"sentAt"`
}

// ChatMessage is a relayed audience chat line.
type ChatMessage struct {
	Version   int       `json:"v"`
	ID        string    `json:"id"`
	WebinarID int64     `json:"webinarId"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name,omitempty"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sentAt"`
}

// PollCreated announces a launched poll.
type PollCreated struct {
	Version   int      `json:"v"`
	PollID    int64    `json:"pollId"`
	WebinarID int64    `json:"webinarId"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
}

// PollClosed announces a closed poll with its final tally.
type PollClosed struct {
	Version   int            `json:"v"`
	PollID    int64          `json:"pollId"`
	WebinarID int64          `json:"webinarId"`
	Results   map[string]int `json:"results"`
}

// QuestionAsked announces an approved audience question.
type QuestionAsked struct {
	Version    int       `json:"v"`
	QuestionID int64     `json:"questionId"`
	WebinarID  int64     `json:"webinarId"`
	UserID     int64     `json:"userId"`
	Content    string    `json:"content"`
	AskedAt    time.Time `json:"askedAt"`
}

// ForceDisconnect tells a client its session was taken over and where to go next.
type ForceDisconnect struct {
	Version     int    `json:"v"`
	Reason      string `json:"reason"`
	NewLocation string `json:"newLocation"`
}

// UserDisconnected tells a webinar that a participant left.
type UserDisconnected struct {
	Version   int    `json:"v"`
	WebinarID int64  `json:"webinarId"`
	UserID    int64  `json:"userId"`
	Message   string `json:"message"`
}

// Pong answers a Ping invocation.
type Pong struct {
	Version int       `json:"v"`
	At      time.Time `json:"at"`
}

// ErrorEvent reports a rejected invocation to its caller only.
type ErrorEvent struct {
	Version    int    `json:"v"`
	Invocation string `json:"invocation,omitempty"`
	Message    string `json:"message"`
}
