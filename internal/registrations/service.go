package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

var (
	ErrWebinarNotFound   = errors.New("webinar not found")
	ErrWebinarClosed     = errors.New("webinar is completed or cancelled")
	ErrAlreadyRegistered = errors.New("already registered for this webinar")
	ErrNotRegistered     = errors.New("not registered for this webinar")
	ErrInvalidAmountPaid = errors.New("amount paid must not be negative")
)

// Store is the registration persistence the service needs.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetActive(ctx context.Context, webinarID, userID int64) (*models.Registration, error)
	Cancel(ctx context.Context, webinarID, userID int64) error
	ListActiveByUser(ctx context.Context, userID int64) ([]models.Registration, error)
}

// WebinarGetter loads a webinar.
type WebinarGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Webinar, error)
}

// SubscriptionGetter returns the current subscription of a user, or database.ErrNotFound.
type SubscriptionGetter interface {
	Current(ctx context.Context, userID int64, now time.Time) (*models.Subscription, error)
}

// IsUniqueViolation reports a duplicate active registration raised by the store.
type IsUniqueViolation func(error) bool

// Service implements webinar registration.
type Service struct {
	store     Store
	webinars  WebinarGetter
	subs      SubscriptionGetter
	duplicate IsUniqueViolation
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a registrations service.
func NewService(store Store, webinars WebinarGetter, subs SubscriptionGetter, duplicate IsUniqueViolation, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if duplicate == nil {
		duplicate = database.IsUniqueViolation
	}
	return &Service{store: store, webinars: webinars, subs: subs, duplicate: duplicate, now: time.Now, logger: logger}
}

// Register creates an active registration of userID for webinarID.
// For a paid webinar the registration records Paid when the user holds a current
// Paid subscription or paid at least the webinar price; otherwise it records Free
// and the access check later asks for a subscription.
func (s *Service) Register(ctx context.Context, userID, webinarID int64, amountPaidCents int) (*models.Registration, error) {
	if amountPaidCents < 0 {
		return nil, ErrInvalidAmountPaid
	}
	w, err := s.webinars.GetByID(ctx, webinarID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrWebinarNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webinar: %w", err)
	}
	if w.Status == models.StatusCompleted || w.Status == models.StatusCancelled {
		return nil, ErrWebinarClosed
	}

	_, err = s.store.GetActive(ctx, webinarID, userID)
	if err == nil {
		return nil, ErrAlreadyRegistered
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get registration: %w", err)
	}

	reg := &models.Registration{
		WebinarID:        webinarID,
		UserID:           userID,
		SubscriptionUsed: models.TierFree,
	}
	if w.RequiredTier == models.TierPaid {
		tier, amount, err := s.paidTier(ctx, userID, w, amountPaidCents)
		if err != nil {
			return nil, err
		}
		reg.SubscriptionUsed, reg.AmountPaidCents = tier, amount
	}

	if err := s.store.Create(ctx, reg); err != nil {
		if s.duplicate(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	s.logger.Info("webinar registration", zap.Int64("webinar_id", webinarID), zap.Int64("user_id", userID),
		zap.String("subscription_used", string(reg.SubscriptionUsed)))
	return reg, nil
}

func (s *Service) paidTier(ctx context.Context, userID int64, w *models.Webinar, amountPaidCents int) (models.Tier, int, error) {
	sub, err := s.subs.Current(ctx, userID, s.now())
	switch {
	case err == nil && sub.Tier == models.TierPaid:
		return models.TierPaid, 0, nil
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return "", 0, fmt.Errorf("get subscription: %w", err)
	}
	if amountPaidCents > 0 && amountPaidCents >= w.PriceCents {
		return models.TierPaid, amountPaidCents, nil
	}
	return models.TierFree, 0, nil
}

// Cancel deactivates a registration. Cancelled rows are kept.
func (s *Service) Cancel(ctx context.Context, userID, webinarID int64) error {
	err := s.store.Cancel(ctx, webinarID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotRegistered
	}
	return err
}

// ListMine returns a user's active registrations.
func (s *Service) ListMine(ctx context.Context, userID int64) ([]models.Registration, error) {
	return s.store.ListActiveByUser(ctx, userID)
}
