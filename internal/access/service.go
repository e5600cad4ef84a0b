package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/metrics"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

var (
	ErrWebinarNotFound = errors.New("webinar not found")
	ErrUserNotFound    = errors.New("user not found")
)

const auditTimeout = 5 * time.Second

// WebinarStore reads webinars for decisions and the dashboard.
type WebinarStore interface {
	GetByID(ctx context.Context, id int64) (*models.Webinar, error)
	ListUpcoming(ctx context.Context, now time.Time, window time.Duration) ([]models.Webinar, error)
	ListRegisteredBy(ctx context.Context, userID int64) ([]models.Webinar, error)
	ListByHost(ctx context.Context, hostID int64) ([]models.Webinar, error)
}

// UserGetter loads a user.
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// RegistrationGetter loads the active registration of a user.
type RegistrationGetter interface {
	GetActive(ctx context.Context, webinarID, userID int64) (*models.Registration, error)
}

// SubscriptionGetter loads the current subscription of a user.
type SubscriptionGetter interface {
	Current(ctx context.Context, userID int64, now time.Time) (*models.Subscription, error)
}

// Client describes the caller for the audit row.
type Client struct {
	IPAddress string
	UserAgent string
}

// DashboardItem is a webinar annotated for one user.
type DashboardItem struct {
	models.Webinar
	IsAccessible bool `json:"isAccessible"`
	IsLive       bool `json:"isLive"`
	IsRegistered bool `json:"isRegistered"`
}

// Dashboard groups the webinars relevant to a user.
type Dashboard struct {
	Upcoming   []DashboardItem `json:"upcoming"`
	Registered []DashboardItem `json:"registered"`
	Hosted     []DashboardItem `json:"hosted"`
}

// Service evaluates access against stored data and records granted accesses.
type Service struct {
	webinars WebinarStore
	users    UserGetter
	regs     RegistrationGetter
	subs     SubscriptionGetter
	audit    AuditSink
	eval     *Evaluator
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates an access service. audit may be nil to skip auditing.
func NewService(webinars WebinarStore, users UserGetter, regs RegistrationGetter, subs SubscriptionGetter,
	audit AuditSink, window time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		webinars: webinars,
		users:    users,
		regs:     regs,
		subs:     subs,
		audit:    audit,
		eval:     NewEvaluator(window),
		now:      time.Now,
		logger:   logger,
	}
}

// Evaluator returns the window rules the service applies.
func (s *Service) Evaluator() *Evaluator {
	return s.eval
}

// Check decides whether userID may join webinarID now. A granted decision is audited
// in the background; audit failures are logged and never change the decision.
func (s *Service) Check(ctx context.Context, webinarID, userID int64, client Client) (*Decision, error) {
	w, err := s.webinars.GetByID(ctx, webinarID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrWebinarNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webinar: %w", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	now := s.now()
	if !u.IsActive {
		d := &Decision{Reason: ReasonInactive, Message: "Your account is deactivated"}
		metrics.AccessDecisionsTotal.WithLabelValues(string(d.Reason)).Inc()
		return d, nil
	}

	in := Input{Webinar: w, Role: u.Role}
	if !u.Role.IsStaff() {
		reg, err := s.regs.GetActive(ctx, webinarID, userID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("get registration: %w", err)
		}
		in.Registration = reg
		if reg != nil && w.RequiredTier == models.TierPaid && reg.SubscriptionUsed != models.TierPaid {
			sub, err := s.subs.Current(ctx, userID, now)
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return nil, fmt.Errorf("get subscription: %w", err)
			}
			in.Subscription = sub
		}
	}

	d := s.eval.Evaluate(in, now)
	metrics.AccessDecisionsTotal.WithLabelValues(string(d.Reason)).Inc()
	if d.CanAccess {
		s.record(models.WebinarAccess{
			WebinarID:  webinarID,
			UserID:     userID,
			AccessedAt: now,
			IPAddress:  client.IPAddress,
			UserAgent:  client.UserAgent,
		})
	}
	return &d, nil
}

func (s *Service) record(a models.WebinarAccess) {
	if s.audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := s.audit.Record(ctx, a); err != nil {
			s.logger.Warn("access audit failed",
				zap.Error(err), zap.Int64("webinar_id", a.WebinarID), zap.Int64("user_id", a.UserID))
		}
	}()
}

// Dashboard lists upcoming, registered and hosted webinars for a user.
func (s *Service) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	now := s.now()

	registered, err := s.webinars.ListRegisteredBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list registered: %w", err)
	}
	isRegistered := make(map[int64]bool, len(registered))
	for _, w := range registered {
		isRegistered[w.ID] = true
	}
	upcoming, err := s.webinars.ListUpcoming(ctx, now, s.eval.Window())
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}

	d := &Dashboard{
		Upcoming:   s.annotate(upcoming, isRegistered, now),
		Registered: s.annotate(registered, isRegistered, now),
		Hosted:     []DashboardItem{},
	}
	if u.Role.IsStaff() {
		hosted, err := s.webinars.ListByHost(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list hosted: %w", err)
		}
		d.Hosted = s.annotate(hosted, isRegistered, now)
	}
	return d, nil
}

func (s *Service) annotate(list []models.Webinar, registered map[int64]bool, now time.Time) []DashboardItem {
	items := make([]DashboardItem, 0, len(list))
	for i := range list {
		w := list[i]
		items = append(items, DashboardItem{
			Webinar:      w,
			IsAccessible: s.eval.IsAccessible(&w, now),
			IsLive:       w.IsLive(),
			IsRegistered: registered[w.ID],
		})
	}
	return items
}
