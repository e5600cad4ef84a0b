package models

import "time"

// Subscription is an account-level entitlement independent of any single webinar.
type Subscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Tier      Tier      `json:"tier"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCurrent reports whether the subscription is active and unexpired at now.
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.IsActive && !now.Before(s.StartDate) && now.Before(s.EndDate)
}
