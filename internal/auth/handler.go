package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/metrics"
	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

// LoginViewerRequest is the body for POST /login-viewer.
type LoginViewerRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Mobile      string `json:"mobile" binding:"required,mobile"`
	Email       string `json:"email" binding:"omitempty,email"`
	City        string `json:"city" binding:"max=100"`
	State       string `json:"state" binding:"max=100"`
	Country     string `json:"country" binding:"max=100"`
	ForceLogout bool   `json:"forceLogout"`
}

// LoginViewerResponse is the flat body returned by POST /login-viewer.
type LoginViewerResponse struct {
	Success           bool   `json:"success"`
	Token             string `json:"token,omitempty"`
	UserID            int64  `json:"userId,omitempty"`
	Role              string `json:"role,omitempty"`
	ShouldLogoutOther bool   `json:"shouldLogoutOther"`
	Message           string `json:"message"`
}

// LoginAdminRequest is the body for POST /login-admin.
type LoginAdminRequest struct {
	Mobile   string `json:"mobile" binding:"required,mobile"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// BroadcastTokenResponse is returned by POST /auth/broadcast-token/:webinarId.
type BroadcastTokenResponse struct {
	Token     string    `json:"token"`
	WebinarID int64     `json:"webinar_id"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SetRoleRequest is the body for PATCH /users/:id/role.
type SetRoleRequest struct {
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"omitempty,min=8"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// LoginViewer handles POST /login-viewer.
func (h *Handler) LoginViewer(c *gin.Context) {
	var req LoginViewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.LoginsTotal.WithLabelValues("viewer", "invalid").Inc()
		c.JSON(http.StatusBadRequest, LoginViewerResponse{Message: bindingMessage(err)})
		return
	}

	res, err := h.svc.LoginViewer(c.Request.Context(), LoginViewerInput{
		Profile: Profile{
			Name:    req.Name,
			Email:   req.Email,
			City:    req.City,
			State:   req.State,
			Country: req.Country,
		},
		Mobile:      req.Mobile,
		ForceLogout: req.ForceLogout,
	})
	switch {
	case errors.Is(err, ErrInvalidMobile):
		metrics.LoginsTotal.WithLabelValues("viewer", "invalid").Inc()
		c.JSON(http.StatusBadRequest, LoginViewerResponse{Message: err.Error()})
		return
	case errors.Is(err, ErrUserInactive):
		metrics.LoginsTotal.WithLabelValues("viewer", "rejected").Inc()
		c.JSON(http.StatusForbidden, LoginViewerResponse{Message: err.Error()})
		return
	case err != nil:
		metrics.LoginsTotal.WithLabelValues("viewer", "error").Inc()
		h.logger.Error("viewer login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, LoginViewerResponse{Message: response.MsgServerError})
		return
	}

	if res.ShouldLogoutOther {
		metrics.LoginsTotal.WithLabelValues("viewer", "confirm_logout").Inc()
		c.JSON(http.StatusOK, LoginViewerResponse{ShouldLogoutOther: true, Message: res.Message})
		return
	}
	metrics.LoginsTotal.WithLabelValues("viewer", "ok").Inc()
	c.JSON(http.StatusOK, LoginViewerResponse{
		Success: true,
		Token:   res.Token,
		UserID:  res.User.ID,
		Role:    string(res.User.Role),
		Message: res.Message,
	})
}

// LoginAdmin handles POST /login-admin.
func (h *Handler) LoginAdmin(c *gin.Context) {
	var req LoginAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}
	res, err := h.svc.LoginAdmin(c.Request.Context(), req.Mobile, req.Password)
	metrics.LoginsTotal.WithLabelValues("admin", metrics.Result(err)).Inc()
	switch {
	case errors.Is(err, ErrInvalidMobile):
		response.BadRequest(c, err.Error())
		return
	case errors.Is(err, ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
		return
	case errors.Is(err, ErrUserInactive):
		response.Forbidden(c, err.Error())
		return
	case err != nil:
		h.logger.Error("admin login failed", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, TokenResponse{Token: res.Token, User: res.User})
}

// BroadcastToken handles POST /auth/broadcast-token/:webinarId (host of the webinar or admin).
func (h *Handler) BroadcastToken(c *gin.Context) {
	webinarID, err := params.PathID(c, "webinarId")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)
	role := models.Role(c.GetString(middleware.ContextUserRole))

	token, claims, err := h.svc.IssueBroadcastToken(c.Request.Context(), userID, role, webinarID)
	switch {
	case errors.Is(err, ErrWebinarNotFound):
		response.NotFound(c, err.Error())
		return
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "only the webinar host or an admin may broadcast")
		return
	case err != nil:
		h.logger.Error("issue broadcast token", zap.Error(err), zap.Int64("webinar_id", webinarID))
		response.Internal(c)
		return
	}
	response.Created(c, BroadcastTokenResponse{
		Token:     token,
		WebinarID: webinarID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// Me handles GET /users/me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	user, err := h.svc.Me(c.Request.Context(), userID)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("get current user", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, user)
}

// List handles GET /users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, list)
}

// SetRole handles PATCH /users/:id/role (admin only).
func (h *Handler) SetRole(c *gin.Context) {
	id, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.svc.SetRole(c.Request.Context(), id, role, req.Password)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("set user role", zap.Error(err), zap.Int64("user_id", id))
		response.Internal(c)
		return
	}
	response.OK(c, user)
}

// Deactivate handles PATCH /users/:id/deactivate (admin only).
func (h *Handler) Deactivate(c *gin.Context) {
	id, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	err = h.svc.Deactivate(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("deactivate user", zap.Error(err), zap.Int64("user_id", id))
		response.Internal(c)
		return
	}
	response.NoContent(c)
}
