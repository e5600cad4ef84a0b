package webinars

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// WebinarRequest is the body for POST /webinars.
type WebinarRequest struct {
	Title           string `json:"title" binding:"max=200"`
	Description     string `json:"description"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes" binding:"gte=0,lte=1440"`
	StreamURL       string `json:"stream_url" binding:"omitempty,url"`
	RequiredTier    string `json:"required_tier" binding:"omitempty,oneof=free paid"`
	PriceCents      int    `json:"price_cents" binding:"gte=0"`
	HostUserID      int64  `json:"host_user_id"`
}

// UpdateRequest is the body for PATCH /webinars/:id. Omitted fields are left unchanged.
type UpdateRequest struct {
	Title           *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description     *string `json:"description"`
	ScheduledAt     *string `json:"scheduled_at"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,gte=1,lte=1440"`
	StreamURL       *string `json:"stream_url" binding:"omitempty,url"`
	RequiredTier    *string `json:"required_tier" binding:"omitempty,oneof=free paid"`
	PriceCents      *int    `json:"price_cents" binding:"omitempty,gte=0"`
}

func (req UpdateRequest) patch() (Patch, error) {
	p := Patch{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		StreamURL:       req.StreamURL,
		PriceCents:      req.PriceCents,
	}
	if req.RequiredTier != nil {
		tier := models.Tier(*req.RequiredTier)
		p.RequiredTier = &tier
	}
	if req.ScheduledAt != nil {
		t, err := parseTime(*req.ScheduledAt)
		if err != nil {
			return p, errors.New("invalid scheduled_at, expected RFC3339")
		}
		p.ScheduledAt = &t
	}
	return p, nil
}

// StatusRequest is the body for POST /webinars/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CountsResponse is returned by GET /webinars/:id/counts.
type CountsResponse struct {
	WebinarID    int64 `json:"webinar_id"`
	Viewers      int   `json:"viewers"`
	Participants int   `json:"participants"`
}

// Handler handles webinar HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a webinar handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (req WebinarRequest) input() (Input, error) {
	in := Input{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		StreamURL:       req.StreamURL,
		RequiredTier:    models.Tier(req.RequiredTier),
		PriceCents:      req.PriceCents,
		HostUserID:      req.HostUserID,
	}
	if req.ScheduledAt != "" {
		t, err := parseTime(req.ScheduledAt)
		if err != nil {
			return in, errors.New("invalid scheduled_at, expected RFC3339")
		}
		in.ScheduledAt = t
	}
	return in, nil
}

func caller(c *gin.Context) (int64, models.Role) {
	return c.MustGet(middleware.ContextUserID).(int64), models.Role(c.GetString(middleware.ContextUserRole))
}

func (h *Handler) fail(c *gin.Context, err error, msg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrFinished):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		response.Internal(c)
	}
}

// Create handles POST /webinars (host or admin).
func (h *Handler) Create(c *gin.Context) {
	var req WebinarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID, role := caller(c)
	w, err := h.svc.Create(c.Request.Context(), userID, role, in)
	if err != nil {
		h.fail(c, err, "create webinar")
		return
	}
	response.Created(c, w)
}

// GetByID handles GET /webinars/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	w, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "get webinar", zap.Int64("webinar_id", id))
		return
	}
	response.OK(c, w)
}

// ListUpcoming handles GET /webinars.
func (h *Handler) ListUpcoming(c *gin.Context) {
	list, err := h.svc.ListUpcoming(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list upcoming webinars")
		return
	}
	response.OK(c, list)
}

// ListHosted handles GET /webinars/hosted.
func (h *Handler) ListHosted(c *gin.Context) {
	userID, _ := caller(c)
	list, err := h.svc.ListHosted(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "list hosted webinars", zap.Int64("user_id", userID))
		return
	}
	response.OK(c, list)
}

// Update handles PATCH /webinars/:id (host of the webinar or admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := req.patch()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID, role := caller(c)
	w, err := h.svc.Update(c.Request.Context(), userID, role, id, p)
	if err != nil {
		h.fail(c, err, "update webinar", zap.Int64("webinar_id", id))
		return
	}
	response.OK(c, w)
}

// SetStatus handles POST /webinars/:id/status (host of the webinar or admin).
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	next, err := models.ParseWebinarStatus(req.Status)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID, role := caller(c)
	w, err := h.svc.TransitionStatus(c.Request.Context(), userID, role, id, next)
	if err != nil {
		h.fail(c, err, "change webinar status", zap.Int64("webinar_id", id))
		return
	}
	response.OK(c, w)
}

// Counts handles GET /webinars/:id/counts.
func (h *Handler) Counts(c *gin.Context) {
	id, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	viewers, participants, err := h.svc.Counts(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "webinar counts", zap.Int64("webinar_id", id))
		return
	}
	response.OK(c, CountsResponse{WebinarID: id, Viewers: viewers, Participants: participants})
}
