package access

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

const defaultLogLimit = 100

// CheckResponse is the flat body of GET /webinar/access/:webinarId.
type CheckResponse struct {
	CanAccess     bool   `json:"canAccess"`
	Message       string `json:"message"`
	Reason        Reason `json:"reason"`
	RemainingTime int64  `json:"remainingTime"` // seconds
}

// Handler serves access checks, the user dashboard and the audit log.
type Handler struct {
	svc    *Service
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an access handler. repo may be nil when the audit log endpoint is not routed.
func NewHandler(svc *Service, repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, repo: repo, logger: logger}
}

// Check handles GET /webinar/access/:webinarId?userId=.
func (h *Handler) Check(c *gin.Context) {
	webinarID, err := params.PathID(c, "webinarId")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	userID, err := params.QueryID(c, "userId")
	if err != nil {
		response.BadRequest(c, "userId is required")
		return
	}
	d, err := h.svc.Check(c.Request.Context(), webinarID, userID, Client{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	switch {
	case errors.Is(err, ErrWebinarNotFound), errors.Is(err, ErrUserNotFound):
		response.NotFound(c, err.Error())
	case err != nil:
		h.logger.Error("access check", zap.Error(err), zap.Int64("webinar_id", webinarID), zap.Int64("user_id", userID))
		response.Internal(c)
	default:
		c.JSON(http.StatusOK, CheckResponse{
			CanAccess:     d.CanAccess,
			Message:       d.Message,
			Reason:        d.Reason,
			RemainingTime: int64(d.RemainingTime.Seconds()),
		})
	}
}

// Dashboard handles GET /webinar/dashboard/:userId.
func (h *Handler) Dashboard(c *gin.Context) {
	userID, err := params.PathID(c, "userId")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	d, err := h.svc.Dashboard(c.Request.Context(), userID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(c, err.Error())
	case err != nil:
		h.logger.Error("dashboard", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c)
	default:
		response.OK(c, d)
	}
}

// AccessLog handles GET /webinars/:id/access-log for staff.
func (h *Handler) AccessLog(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	list, err := h.repo.ListByWebinar(c.Request.Context(), webinarID, defaultLogLimit)
	if err != nil {
		h.logger.Error("list access log", zap.Error(err), zap.Int64("webinar_id", webinarID))
		response.Internal(c)
		return
	}
	response.OK(c, list)
}
