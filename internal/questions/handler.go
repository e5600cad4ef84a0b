package questions

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

// CreateRequest is the body for POST /webinars/:id/questions.
type CreateRequest struct {
	Content string `json:"content" binding:"required"`
}

// Handler handles question HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrWebinarNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrAlreadyApproved):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidContent):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c)
	}
}

// ListByWebinar handles GET /webinars/:id/questions.
func (h *Handler) ListByWebinar(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	role := models.Role(c.GetString(middleware.ContextUserRole))
	list, err := h.svc.List(c.Request.Context(), webinarID, role.IsStaff())
	if err != nil {
		h.fail(c, err, "list questions")
		return
	}
	response.OK(c, gin.H{"questions": list})
}

// Create handles POST /webinars/:id/questions (audience asks question).
func (h *Handler) Create(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)
	q, err := h.svc.Ask(c.Request.Context(), userID, webinarID, req.Content)
	if err != nil {
		h.fail(c, err, "create question")
		return
	}
	response.Created(c, q)
}

// Approve handles PATCH /questions/:id/approve (host/admin).
func (h *Handler) Approve(c *gin.Context) {
	h.moderate(c, h.svc.Approve, "approve question")
}

// Answer handles PATCH /questions/:id/answer (host/admin).
func (h *Handler) Answer(c *gin.Context) {
	h.moderate(c, h.svc.MarkAnswered, "answer question")
}

type moderation func(ctx context.Context, userID int64, role models.Role, id int64) (*models.Question, error)

func (h *Handler) moderate(c *gin.Context, op moderation, msg string) {
	id, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)
	role := models.Role(c.GetString(middleware.ContextUserRole))
	q, err := op(c.Request.Context(), userID, role, id)
	if err != nil {
		h.fail(c, err, msg)
		return
	}
	response.OK(c, q)
}
