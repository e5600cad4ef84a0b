// Package access decides whether a user may join a webinar now.
package access

import (
	"fmt"
	"time"

	"github.com/aura-webinar/live/internal/models"
)

// DefaultWindow is how long after its scheduled start a webinar stays joinable.
const DefaultWindow = 5 * time.Hour

// Reason is a stable code for an access decision.
type Reason string

const (
	ReasonGranted              Reason = "granted"
	ReasonStaff                Reason = "staff_bypass"
	ReasonNotRegistered        Reason = "not_registered"
	ReasonSubscriptionRequired Reason = "subscription_required"
	ReasonCancelled            Reason = "cancelled"
	ReasonNotYetAvailable      Reason = "not_yet_available"
	ReasonExpired              Reason = "expired"
	ReasonInactive             Reason = "inactive"
)

// Input is everything the evaluator looks at. Registration and Subscription are nil when absent.
type Input struct {
	Webinar      *models.Webinar
	Role         models.Role
	Registration *models.Registration
	Subscription *models.Subscription
}

// Decision is the outcome of Evaluate. RemainingTime is the time left in the join window.
type Decision struct {
	CanAccess     bool
	Reason        Reason
	Message       string
	RemainingTime time.Duration
}

// Evaluator applies the entitlement and time-window rules.
type Evaluator struct {
	window time.Duration
}

// NewEvaluator creates an evaluator; a non-positive window means DefaultWindow.
func NewEvaluator(window time.Duration) *Evaluator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Evaluator{window: window}
}

// Window returns the join window length.
func (e *Evaluator) Window() time.Duration {
	return e.window
}

// IsAccessible reports whether now lies in [ScheduledAt, ScheduledAt+window].
// Status is ignored: a webinar never marked Live is still joinable on the clock.
func (e *Evaluator) IsAccessible(w *models.Webinar, now time.Time) bool {
	start := w.ScheduledAt
	return !now.Before(start) && !now.After(start.Add(e.window))
}

// Remaining returns the time left in the join window, or 0 outside it.
func (e *Evaluator) Remaining(w *models.Webinar, now time.Time) time.Duration {
	if !e.IsAccessible(w, now) {
		return 0
	}
	return w.ScheduledAt.Add(e.window).Sub(now)
}

// Evaluate decides access. Hosts and admins always pass. Everyone else needs an
// active registration, the paid entitlement when the webinar requires it, a
// webinar that is not cancelled, and a time inside the join window.
func (e *Evaluator) Evaluate(in Input, now time.Time) Decision {
	w := in.Webinar
	if in.Role.IsStaff() {
		return Decision{CanAccess: true, Reason: ReasonStaff, Message: "Access granted", RemainingTime: e.Remaining(w, now)}
	}
	if in.Registration == nil || !in.Registration.IsActive || in.Registration.WebinarID != w.ID {
		return Decision{Reason: ReasonNotRegistered, Message: "You are not registered for this webinar"}
	}
	if w.RequiredTier == models.TierPaid && !paidEntitled(in, now) {
		return Decision{Reason: ReasonSubscriptionRequired, Message: "A paid subscription is required to join this webinar"}
	}
	if w.Status == models.StatusCancelled {
		return Decision{Reason: ReasonCancelled, Message: "This webinar has been cancelled"}
	}
	switch {
	case now.Before(w.ScheduledAt):
		return Decision{
			Reason:  ReasonNotYetAvailable,
			Message: fmt.Sprintf("Webinar is not yet available. It starts at %s", w.ScheduledAt.UTC().Format(time.RFC3339)),
		}
	case now.After(w.ScheduledAt.Add(e.window)):
		return Decision{Reason: ReasonExpired, Message: "Access period for this webinar has expired"}
	}
	return Decision{CanAccess: true, Reason: ReasonGranted, Message: "Access granted", RemainingTime: e.Remaining(w, now)}
}

func paidEntitled(in Input, now time.Time) bool {
	if in.Registration.SubscriptionUsed == models.TierPaid {
		return true
	}
	s := in.Subscription
	return s != nil && s.Tier == models.TierPaid && s.IsCurrent(now)
}
