package polls

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

// CreateRequest is the body for POST /webinars/:id/polls.
type CreateRequest struct {
	Question string `json:"question" binding:"required,max=500"`
	OptionA  string `json:"option_a" binding:"required,max=200"`
	OptionB  string `json:"option_b" binding:"required,max=200"`
	OptionC  string `json:"option_c" binding:"max=200"`
	OptionD  string `json:"option_d" binding:"max=200"`
}

// AnswerRequest is the body for POST /polls/:id/answer.
type AnswerRequest struct {
	Option string `json:"option" binding:"required,oneof=A B C D"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func caller(c *gin.Context) (int64, models.Role) {
	return c.MustGet(middleware.ContextUserID).(int64), models.Role(c.GetString(middleware.ContextUserRole))
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrNotOpen), errors.Is(err, ErrInvalidInput):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c)
	}
}

// Create handles POST /webinars/:id/polls (host/admin).
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
	userID, role := caller(c)
	p, err := h.svc.Create(c.Request.Context(), userID, role, webinarID, Input{
		Question: req.Question,
		Options:  [4]string{req.OptionA, req.OptionB, req.OptionC, req.OptionD},
	})
	if err != nil {
		h.fail(c, err, "create poll")
		return
	}
	response.Created(c, p)
}

// List handles GET /webinars/:id/polls.
func (h *Handler) List(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	_, role := caller(c)
	list, err := h.svc.List(c.Request.Context(), webinarID, role.IsStaff())
	if err != nil {
		h.fail(c, err, "list polls")
		return
	}
	response.OK(c, gin.H{"polls": list})
}

// Launch handles POST /polls/:id/launch (host/admin).
func (h *Handler) Launch(c *gin.Context) {
	pollID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	userID, role := caller(c)
	p, err := h.svc.Launch(c.Request.Context(), userID, role, pollID)
	if err != nil {
		h.fail(c, err, "launch poll")
		return
	}
	response.OK(c, p)
}

// Close handles POST /polls/:id/close (host/admin).
func (h *Handler) Close(c *gin.Context) {
	pollID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	userID, role := caller(c)
	t, err := h.svc.Close(c.Request.Context(), userID, role, pollID)
	if err != nil {
		h.fail(c, err, "close poll")
		return
	}
	response.OK(c, gin.H{"id": pollID, "closed": true, "results": t})
}

// Answer handles POST /polls/:id/answer (audience).
func (h *Handler) Answer(c *gin.Context) {
	pollID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: option must be A, B, C, or D")
		return
	}
	userID, _ := caller(c)
	if err := h.svc.Answer(c.Request.Context(), userID, pollID, req.Option); err != nil {
		h.fail(c, err, "answer poll")
		return
	}
	response.OK(c, gin.H{"poll_id": pollID, "option": req.Option})
}

// Results handles GET /polls/:id/results.
func (h *Handler) Results(c *gin.Context) {
	pollID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	t, err := h.svc.Results(c.Request.Context(), pollID)
	if err != nil {
		h.fail(c, err, "poll results")
		return
	}
	response.OK(c, t)
}
