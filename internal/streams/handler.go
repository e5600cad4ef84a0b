package streams

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
)

// Handler serves stream session stats.
type Handler struct {
	tracker *Tracker
	logger  *zap.Logger
}

// NewHandler creates a streams handler.
func NewHandler(tracker *Tracker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{tracker: tracker, logger: logger}
}

// ListSessions handles GET /webinars/:id/sessions (host/admin).
func (h *Handler) ListSessions(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	list, err := h.tracker.Sessions(c.Request.Context(), webinarID)
	if err != nil {
		h.logger.Error("list stream sessions", zap.Error(err), zap.Int64("webinar_id", webinarID))
		response.Internal(c)
		return
	}
	response.OK(c, gin.H{"sessions": list})
}
