package relay

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

// HeaderUserID carries the caller's user id on POST /overlay/:webinarId.
const HeaderUserID = "X-User-Id"

// OverlayRequest is the body of POST /overlay/:webinarId.
type OverlayRequest struct {
	Kind     string          `json:"kind" binding:"required,max=32"`
	Text     string          `json:"text" binding:"max=2000"`
	ImageURL string          `json:"imageUrl" binding:"omitempty,url"`
	Data     json.RawMessage `json:"data"`
}

// Overlay converts the request into a broadcast payload.
func (r OverlayRequest) Overlay() realtime.Overlay {
	return realtime.Overlay{Kind: r.Kind, Text: r.Text, ImageURL: r.ImageURL, Data: r.Data}
}

// Handler serves the HTTP overlay endpoint.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a relay handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// BroadcastOverlay handles POST /overlay/:webinarId with X-User-Id and a bearer broadcast token.
func (h *Handler) BroadcastOverlay(c *gin.Context) {
	webinarID, err := params.PathID(c, "webinarId")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	userID, err := params.HeaderID(c, HeaderUserID)
	if err != nil {
		response.Unauthorized(c, "missing "+HeaderUserID+" header")
		return
	}
	token := middleware.BearerToken(c)
	if token == "" {
		response.Unauthorized(c, "missing broadcast token")
		return
	}
	var req OverlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	err = h.svc.BroadcastOverlay(c.Request.Context(), webinarID, userID, token, req.Overlay())
	switch {
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidMessage):
		response.BadRequest(c, err.Error())
	case err != nil:
		h.logger.Error("broadcast overlay", zap.Error(err), zap.Int64("webinar_id", webinarID))
		response.Internal(c)
	default:
		response.OK(c, gin.H{"message": "Overlay broadcasted"})
	}
}
