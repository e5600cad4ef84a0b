package models

import (
	"strings"
	"time"
)

// ParticipantRole is the role a connection declared when joining a webinar.
type ParticipantRole string

const (
	ParticipantViewer ParticipantRole = "viewer"
	ParticipantHost   ParticipantRole = "host"
)

// ParseParticipantRole maps a wire string to a role; anything unrecognised is a viewer.
func ParseParticipantRole(s string) ParticipantRole {
	if ParticipantRole(strings.ToLower(strings.TrimSpace(s))) == ParticipantHost {
		return ParticipantHost
	}
	return ParticipantViewer
}

// Participant is one open real-time connection attached to a webinar.
// At most one row exists per (UserID, WebinarID).
type Participant struct {
	ID           int64           `json:"id"`
	WebinarID    int64           `json:"webinar_id"`
	UserID       int64           `json:"user_id"`
	ConnectionID string          `json:"connection_id"`
	Role         ParticipantRole `json:"role"`
	ConnectedAt  time.Time       `json:"connected_at"`
}

// WebinarAccess is an append-only audit row written when a user is granted access to a live webinar.
type WebinarAccess struct {
	ID         int64     `json:"id"`
	WebinarID  int64     `json:"webinar_id"`
	UserID     int64     `json:"user_id"`
	AccessedAt time.Time `json:"accessed_at"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
}
