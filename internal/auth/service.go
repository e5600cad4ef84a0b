package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
	"github.com/aura-webinar/live/pkg/utils"
)

var (
	ErrInvalidMobile      = errors.New("mobile number must be 10 digits")
	ErrInvalidCredentials = errors.New("invalid mobile or password")
	ErrUserInactive       = errors.New("account is deactivated")
	ErrForbidden          = errors.New("forbidden")
	ErrWebinarNotFound    = errors.New("webinar not found")
)

// Eviction details sent to the connections of a user who logged in elsewhere.
const (
	ReasonLoggedInElsewhere = "logged in on another device"
	ReasonDeactivated       = "account deactivated"
)

// UserStore is the user persistence the service needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByMobile(ctx context.Context, mobile string) (*models.User, error)
	Create(ctx context.Context, mobile string, p Profile, role models.Role) (*models.User, error)
	UpdateOnLogin(ctx context.Context, id int64, p Profile) (*models.User, error)
	TouchLogin(ctx context.Context, id int64) error
	List(ctx context.Context) ([]models.User, error)
	SetRole(ctx context.Context, id int64, role models.Role) (*models.User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
	Deactivate(ctx context.Context, id int64) error
}

// SessionTracker answers whether a user is connected and evicts its connections.
type SessionTracker interface {
	HasActiveSession(ctx context.Context, userID int64) (bool, error)
	EvictUser(ctx context.Context, userID int64, reason, newLocation string) (int, error)
}

// HostLookup returns the host user id of a webinar, or database.ErrNotFound.
type HostLookup interface {
	HostOf(ctx context.Context, webinarID int64) (int64, error)
}

// LoginViewerInput is a mobile-number login.
type LoginViewerInput struct {
	Profile
	Mobile      string
	ForceLogout bool
}

// LoginResult is the outcome of a login. Token is empty when ShouldLogoutOther is set.
type LoginResult struct {
	Token             string
	User              *models.User
	ShouldLogoutOther bool
	Message           string
}

// Service implements login and session reconciliation.
type Service struct {
	users          UserStore
	sessions       SessionTracker
	hosts          HostLookup
	jwt            *JWTService
	bootstrapAdmin string
	logoutLocation string
	logger         *zap.Logger
}

// NewService creates the auth service.
func NewService(users UserStore, sessions SessionTracker, hosts HostLookup, jwt *JWTService,
	bootstrapAdminMobile, logoutLocation string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:          users,
		sessions:       sessions,
		hosts:          hosts,
		jwt:            jwt,
		bootstrapAdmin: utils.NormalizeMobile(bootstrapAdminMobile),
		logoutLocation: logoutLocation,
		logger:         logger,
	}
}

// LoginViewer logs a user in by mobile number, creating the account on first use.
// If the user already has a live connection and ForceLogout is false, nothing is
// changed and the result asks the caller to confirm logging the other device out.
func (s *Service) LoginViewer(ctx context.Context, in LoginViewerInput) (*LoginResult, error) {
	mobile := utils.NormalizeMobile(in.Mobile)
	if !utils.IsValidMobile(mobile) {
		return nil, ErrInvalidMobile
	}

	user, err := s.users.GetByMobile(ctx, mobile)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user != nil {
		if !user.IsActive {
			return nil, ErrUserInactive
		}
		active, err := s.sessions.HasActiveSession(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("check session: %w", err)
		}
		if active {
			if !in.ForceLogout {
				return &LoginResult{
					User:              user,
					ShouldLogoutOther: true,
					Message:           "already logged in on another device",
				}, nil
			}
			if _, err := s.sessions.EvictUser(ctx, user.ID, ReasonLoggedInElsewhere, s.logoutLocation); err != nil {
				return nil, fmt.Errorf("evict sessions: %w", err)
			}
		}
		if user.Role.IsStaff() {
			return s.staffAsViewer(ctx, user)
		}
		user, err = s.users.UpdateOnLogin(ctx, user.ID, in.Profile)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	} else {
		role := models.RoleGuest
		if s.bootstrapAdmin != "" && mobile == s.bootstrapAdmin {
			role = models.RoleAdmin
		}
		user, err = s.users.Create(ctx, mobile, in.Profile, role)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(role)))
	}

	token, err := s.jwt.GenerateSession(user.ID, user.Mobile, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &LoginResult{Token: token, User: user, Message: "login successful"}, nil
}

// staffAsViewer signs a Host or Admin in through the passwordless login with a guest
// session. Their profile is left as is; staff privileges require LoginAdmin.
func (s *Service) staffAsViewer(ctx context.Context, user *models.User) (*LoginResult, error) {
	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn("touch last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	token, err := s.jwt.GenerateSession(user.ID, user.Mobile, models.RoleGuest)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	scoped := *user
	scoped.Role = models.RoleGuest
	return &LoginResult{Token: token, User: &scoped, Message: "signed in as viewer, use /login-admin for host tools"}, nil
}

// LoginAdmin logs a Host or Admin in with mobile and password.
func (s *Service) LoginAdmin(ctx context.Context, mobile, password string) (*LoginResult, error) {
	mobile = utils.NormalizeMobile(mobile)
	if !utils.IsValidMobile(mobile) {
		return nil, ErrInvalidMobile
	}
	user, err := s.users.GetByMobile(ctx, mobile)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.Role.IsStaff() || !utils.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn("touch last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	token, err := s.jwt.GenerateSession(user.ID, user.Mobile, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &LoginResult{Token: token, User: user, Message: "login successful"}, nil
}

// IssueBroadcastToken lets the webinar's host, or any admin, obtain an overlay token for it.
func (s *Service) IssueBroadcastToken(ctx context.Context, userID int64, role models.Role, webinarID int64) (string, *Claims, error) {
	hostID, err := s.hosts.HostOf(ctx, webinarID)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil, ErrWebinarNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("get webinar host: %w", err)
	}
	switch {
	case role == models.RoleAdmin:
	case role == models.RoleHost && hostID == userID:
	default:
		return "", nil, ErrForbidden
	}
	token, claims, err := s.jwt.GenerateBroadcast(userID, role, webinarID)
	if err != nil {
		return "", nil, fmt.Errorf("generate broadcast token: %w", err)
	}
	s.logger.Info("broadcast token issued",
		zap.Int64("user_id", userID), zap.Int64("webinar_id", webinarID), zap.String("jti", claims.ID))
	return token, claims, nil
}

// Me returns the calling user.
func (s *Service) Me(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// SetRole changes a user's role. A password, when given, enables dashboard login.
func (s *Service) SetRole(ctx context.Context, userID int64, role models.Role, password string) (*models.User, error) {
	user, err := s.users.SetRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if password != "" {
		hash, err := utils.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.users.SetPassword(ctx, userID, hash); err != nil {
			return nil, fmt.Errorf("set password: %w", err)
		}
	}
	return user, nil
}

// Deactivate soft-deletes a user and closes its live connections.
func (s *Service) Deactivate(ctx context.Context, userID int64) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	if _, err := s.sessions.EvictUser(ctx, userID, ReasonDeactivated, s.logoutLocation); err != nil {
		s.logger.Warn("evict deactivated user", zap.Int64("user_id", userID), zap.Error(err))
	}
	return nil
}
