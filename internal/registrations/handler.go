package registrations

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

// RegisterRequest is the optional body for POST /webinars/:id/register.
type RegisterRequest struct {
	AmountPaidCents int `json:"amount_paid_cents" binding:"gte=0"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /webinars/:id/register for the calling user.
func (h *Handler) Register(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req RegisterRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)

	reg, err := h.svc.Register(c.Request.Context(), userID, webinarID, req.AmountPaidCents)
	switch {
	case errors.Is(err, ErrWebinarNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrAlreadyRegistered):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrWebinarClosed), errors.Is(err, ErrInvalidAmountPaid):
		response.BadRequest(c, err.Error())
	case err != nil:
		h.logger.Error("register for webinar", zap.Error(err), zap.Int64("webinar_id", webinarID))
		response.Internal(c)
	default:
		response.Created(c, reg)
	}
}

// Cancel handles DELETE /webinars/:id/register for the calling user.
func (h *Handler) Cancel(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)
	err = h.svc.Cancel(c.Request.Context(), userID, webinarID)
	switch {
	case errors.Is(err, ErrNotRegistered):
		response.NotFound(c, err.Error())
	case err != nil:
		h.logger.Error("cancel registration", zap.Error(err), zap.Int64("webinar_id", webinarID))
		response.Internal(c)
	default:
		response.NoContent(c)
	}
}

// ListMine handles GET /registrations.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	list, err := h.svc.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list registrations", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c)
		return
	}
	response.OK(c, list)
}
