package subscriptions

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

// GrantRequest is the body for POST /subscriptions (admin only).
type GrantRequest struct {
	UserID       int64  `json:"user_id" binding:"required,gt=0"`
	Tier         string `json:"tier" binding:"required,oneof=free paid"`
	StartDate    string `json:"start_date"`
	DurationDays int    `json:"duration_days" binding:"required,gt=0,lte=3650"`
}

// Handler handles subscription HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a subscriptions handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Grant handles POST /subscriptions.
func (h *Handler) Grant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start := time.Now().UTC()
	if req.StartDate != "" {
		t, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			response.BadRequest(c, "invalid start_date, expected RFC3339")
			return
		}
		start = t.UTC()
	}
	s := &models.Subscription{
		UserID:    req.UserID,
		Tier:      models.Tier(req.Tier),
		StartDate: start,
		EndDate:   start.AddDate(0, 0, req.DurationDays),
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("grant subscription", zap.Error(err), zap.Int64("user_id", req.UserID))
		response.Internal(c)
		return
	}
	response.Created(c, s)
}

// Current handles GET /subscriptions/current.
func (h *Handler) Current(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	s, err := h.repo.Current(c.Request.Context(), userID, time.Now())
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "no current subscription")
		return
	}
	if err != nil {
		h.logger.Error("current subscription", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c)
		return
	}
	response.OK(c, s)
}

// ListMine handles GET /subscriptions.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list subscriptions", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c)
		return
	}
	response.OK(c, list)
}

// Deactivate handles PATCH /subscriptions/:id/deactivate (admin only).
func (h *Handler) Deactivate(c *gin.Context) {
	id, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid subscription id")
		return
	}
	err = h.repo.Deactivate(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "subscription not found")
		return
	}
	if err != nil {
		h.logger.Error("deactivate subscription", zap.Error(err), zap.Int64("subscription_id", id))
		response.Internal(c)
		return
	}
	response.NoContent(c)
}
