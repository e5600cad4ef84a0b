package overlays

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/relay"
	"github.com/aura-webinar/live/pkg/params"
	"github.com/aura-webinar/live/pkg/response"
	"github.com/aura-webinar/live/pkg/storage"
)

// PresignRequest is the body for POST /webinars/:id/overlays/presign.
type PresignRequest struct {
	Filename string `json:"filename" binding:"required,max=200"`
	Size     int64  `json:"size" binding:"required,gt=0"`
}

// ShowRequest is the body for POST /webinars/:id/overlays/show.
type ShowRequest struct {
	Key     string `json:"key" binding:"required"`
	Caption string `json:"caption" binding:"max=500"`
	Token   string `json:"token" binding:"required"`
}

// Handler serves overlay asset endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an overlays handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrWebinarNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, relay.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrTooLarge), errors.Is(err, ErrInvalidKey),
		errors.Is(err, relay.ErrInvalidMessage):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c)
	}
}

// Presign handles POST /webinars/:id/overlays/presign.
func (h *Handler) Presign(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)
	role := models.Role(c.GetString(middleware.ContextUserRole))
	ticket, err := h.svc.RequestUpload(c.Request.Context(), userID, role, webinarID, req.Filename, req.Size)
	if err != nil {
		h.fail(c, err, "presign overlay")
		return
	}
	response.OK(c, ticket)
}

// Upload handles multipart POST /webinars/:id/overlays with a "file" field.
func (h *Handler) Upload(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxOverlayFileSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	userID := c.MustGet(middleware.ContextUserID).(int64)
	role := models.Role(c.GetString(middleware.ContextUserRole))
	key, url, err := h.svc.Upload(c.Request.Context(), userID, role, webinarID, fh.Filename, fh.Size, f)
	if err != nil {
		h.fail(c, err, "upload overlay")
		return
	}
	response.Created(c, gin.H{"key": key, "url": url})
}

// Show handles POST /webinars/:id/overlays/show.
func (h *Handler) Show(c *gin.Context) {
	webinarID, err := params.PathID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req ShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)
	url, err := h.svc.Show(c.Request.Context(), userID, webinarID, req.Token, req.Key, req.Caption)
	if err != nil {
		h.fail(c, err, "show overlay")
		return
	}
	response.OK(c, gin.H{"url": url})
}
