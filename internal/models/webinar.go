package models

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidStatus is returned by ParseWebinarStatus for unknown values.
	ErrInvalidStatus = errors.New("invalid webinar status")
	// ErrInvalidTier is returned by ParseTier for unknown values.
	ErrInvalidTier = errors.New("invalid subscription tier")
)

// WebinarStatus is informational; joinability is decided by the access window.
type WebinarStatus string

const (
	StatusScheduled WebinarStatus = "scheduled"
	StatusLive      WebinarStatus = "live"
	StatusCompleted WebinarStatus = "completed"
	StatusCancelled WebinarStatus = "cancelled"
)

// ParseWebinarStatus converts a wire string to a WebinarStatus.
func ParseWebinarStatus(s string) (WebinarStatus, error) {
	switch st := WebinarStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusScheduled, StatusLive, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// CanTransition reports whether a host may move a webinar from s to next.
func (s WebinarStatus) CanTransition(next WebinarStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusLive || next == StatusCancelled
	case StatusLive:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// Tier is a subscription level.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// ParseTier converts a wire string to a Tier.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierPaid:
		return t, nil
	}
	return "", ErrInvalidTier
}

// Webinar is a scheduled live session owned by a host.
type Webinar struct {
	ID              int64         `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	DurationMinutes int           `json:"duration_minutes"`
	StreamURL       string        `json:"stream_url,omitempty"`
	Status          WebinarStatus `json:"status"`
	RequiredTier    Tier          `json:"required_tier"`
	PriceCents      int           `json:"price_cents"`
	HostUserID      int64         `json:"host_user_id"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsLive reports the display-only live flag derived from status.
func (w *Webinar) IsLive() bool {
	return w.Status == StatusLive
}
