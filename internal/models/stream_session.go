package models

import "time"

// StreamSession tracks peak presence for one live run of a webinar.
type StreamSession struct {
	ID               int64      `json:"id"`
	WebinarID        int64      `json:"webinar_id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	PeakViewers      int        `json:"peak_viewers"`
	PeakParticipants int        `json:"peak_participants"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
