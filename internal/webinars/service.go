package webinars

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

var (
	ErrNotFound          = errors.New("webinar not found")
	ErrForbidden         = errors.New("only the webinar host or an admin may change it")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrFinished          = errors.New("webinar is completed or cancelled")
	ErrInvalidInput      = errors.New("invalid webinar")
)

// Store is the webinar persistence the service needs.
type Store interface {
	Create(ctx context.Context, w *models.Webinar) error
	GetByID(ctx context.Context, id int64) (*models.Webinar, error)
	ListUpcoming(ctx context.Context, now time.Time, window time.Duration) ([]models.Webinar, error)
	ListByHost(ctx context.Context, hostID int64) ([]models.Webinar, error)
	Update(ctx context.Context, w *models.Webinar) error
	SetStatus(ctx context.Context, id int64, from, to models.WebinarStatus) (time.Time, error)
}

// CountsReader returns live presence counts.
type CountsReader interface {
	CountsFor(ctx context.Context, webinarID int64) (viewers, participants int, err error)
}

// StatusHook runs after a webinar changed status.
type StatusHook func(ctx context.Context, w *models.Webinar, from models.WebinarStatus)

// Input carries creatable and editable webinar fields.
type Input struct {
	Title           string
	Description     string
	ScheduledAt     time.Time
	DurationMinutes int
	StreamURL       string
	RequiredTier    models.Tier
	PriceCents      int
	HostUserID      int64 // admins may create on behalf of a host
}

func (in Input) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case in.ScheduledAt.IsZero():
		return fmt.Errorf("%w: scheduled_at is required", ErrInvalidInput)
	case in.DurationMinutes < 0 || in.PriceCents < 0:
		return fmt.Errorf("%w: duration and price must not be negative", ErrInvalidInput)
	case in.RequiredTier == models.TierPaid && in.PriceCents == 0:
		return fmt.Errorf("%w: paid webinars need a price", ErrInvalidInput)
	}
	return nil
}

// Patch carries a partial update. Nil fields keep their stored value.
type Patch struct {
	Title           *string
	Description     *string
	ScheduledAt     *time.Time
	DurationMinutes *int
	StreamURL       *string
	RequiredTier    *models.Tier
	PriceCents      *int
}

// apply returns the stored webinar's fields with the patch laid over them.
func (p Patch) apply(w *models.Webinar) Input {
	in := Input{
		Title:           w.Title,
		Description:     w.Description,
		ScheduledAt:     w.ScheduledAt,
		DurationMinutes: w.DurationMinutes,
		StreamURL:       w.StreamURL,
		RequiredTier:    w.RequiredTier,
		PriceCents:      w.PriceCents,
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.ScheduledAt != nil {
		in.ScheduledAt = *p.ScheduledAt
	}
	if p.DurationMinutes != nil {
		in.DurationMinutes = *p.DurationMinutes
	}
	if p.StreamURL != nil {
		in.StreamURL = *p.StreamURL
	}
	if p.RequiredTier != nil {
		in.RequiredTier = *p.RequiredTier
	}
	if p.PriceCents != nil {
		in.PriceCents = *p.PriceCents
	}
	return in
}

// Service implements webinar scheduling and status changes.
type Service struct {
	store  Store
	counts CountsReader
	window time.Duration
	hooks  []StatusHook
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a webinar service. window is the join window after scheduled start.
func NewService(store Store, counts CountsReader, window time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, counts: counts, window: window, now: time.Now, logger: logger}
}

// OnStatusChange adds a hook run after every successful status transition.
func (s *Service) OnStatusChange(h StatusHook) {
	s.hooks = append(s.hooks, h)
}

// Create schedules a webinar. Hosts always own what they create.
func (s *Service) Create(ctx context.Context, userID int64, role models.Role, in Input) (*models.Webinar, error) {
	if !role.IsStaff() {
		return nil, ErrForbidden
	}
	if in.RequiredTier == "" {
		in.RequiredTier = models.TierFree
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = 60
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	host := userID
	if role == models.RoleAdmin && in.HostUserID > 0 {
		host = in.HostUserID
	}
	w := &models.Webinar{
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		ScheduledAt:     in.ScheduledAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		StreamURL:       in.StreamURL,
		Status:          models.StatusScheduled,
		RequiredTier:    in.RequiredTier,
		PriceCents:      in.PriceCents,
		HostUserID:      host,
	}
	if err := s.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create webinar: %w", err)
	}
	s.logger.Info("webinar scheduled", zap.Int64("webinar_id", w.ID), zap.Int64("host_user_id", host))
	return w, nil
}

// Get returns one webinar.
func (s *Service) Get(ctx context.Context, id int64) (*models.Webinar, error) {
	w, err := s.store.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return w, err
}

// ListUpcoming returns webinars that are yet to start or still joinable.
func (s *Service) ListUpcoming(ctx context.Context) ([]models.Webinar, error) {
	return s.store.ListUpcoming(ctx, s.now(), s.window)
}

// ListHosted returns the webinars a user hosts.
func (s *Service) ListHosted(ctx context.Context, hostID int64) ([]models.Webinar, error) {
	return s.store.ListByHost(ctx, hostID)
}

func (s *Service) editable(ctx context.Context, userID int64, role models.Role, id int64) (*models.Webinar, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && !(role == models.RoleHost && w.HostUserID == userID) {
		return nil, ErrForbidden
	}
	return w, nil
}

// Update edits a webinar that has not finished. Fields absent from the patch are kept.
func (s *Service) Update(ctx context.Context, userID int64, role models.Role, id int64, p Patch) (*models.Webinar, error) {
	w, err := s.editable(ctx, userID, role, id)
	if err != nil {
		return nil, err
	}
	if w.Status == models.StatusCompleted || w.Status == models.StatusCancelled {
		return nil, ErrFinished
	}
	in := p.apply(w)
	if err := in.validate(); err != nil {
		return nil, err
	}
	w.Title = strings.TrimSpace(in.Title)
	w.Description = in.Description
	w.ScheduledAt = in.ScheduledAt.UTC()
	w.DurationMinutes = in.DurationMinutes
	w.StreamURL = in.StreamURL
	w.RequiredTier = in.RequiredTier
	w.PriceCents = in.PriceCents
	if err := s.store.Update(ctx, w); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update webinar: %w", err)
	}
	return w, nil
}

// TransitionStatus moves a webinar along Scheduled -> Live -> Completed, or to Cancelled.
// Status is informational: joinability is still decided by the access window.
func (s *Service) TransitionStatus(ctx context.Context, userID int64, role models.Role, id int64, next models.WebinarStatus) (*models.Webinar, error) {
	w, err := s.editable(ctx, userID, role, id)
	if err != nil {
		return nil, err
	}
	from := w.Status
	if !from.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	updated, err := s.store.SetStatus(ctx, id, from, next)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	w.Status = next
	w.UpdatedAt = updated
	s.logger.Info("webinar status changed", zap.Int64("webinar_id", id),
		zap.String("from", string(from)), zap.String("to", string(next)))
	for _, h := range s.hooks {
		h(ctx, w, from)
	}
	return w, nil
}

// Counts returns the live (viewers, participants) of an existing webinar.
func (s *Service) Counts(ctx context.Context, id int64) (int, int, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return 0, 0, err
	}
	return s.counts.CountsFor(ctx, id)
}
