package models

import "time"

// Registration links a user to a webinar. Cancelling clears IsActive; rows are never deleted.
type Registration struct {
	ID               int64     `json:"id"`
	WebinarID        int64     `json:"webinar_id"`
	UserID           int64     `json:"user_id"`
	SubscriptionUsed Tier      `json:"subscription_used"`
	AmountPaidCents  int       `json:"amount_paid_cents"`
	IsActive         bool      `json:"is_active"`
	RegisteredAt     time.Time `json:"registered_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
