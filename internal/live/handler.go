// Package live serves the real-time hub endpoint and dispatches client invocations.
package live

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/auth"
	"github.com/aura-webinar/live/internal/metrics"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/presence"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/pkg/database"
)

const opTimeout = 5 * time.Second

// Registry tracks connections in webinars.
type Registry interface {
	Register(ctx context.Context, connID string, webinarID, userID int64, role models.ParticipantRole) (*models.Participant, error)
	Deregister(ctx context.Context, connID string) (*models.Participant, error)
	CountsFor(ctx context.Context, webinarID int64) (viewers, participants int, err error)
}

// WebinarLookup confirms a webinar exists before a connection is tracked in it.
type WebinarLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Webinar, error)
}

// TokenValidator checks the broadcast token a host presents on connect.
type TokenValidator interface {
	ValidateBroadcast(token string, webinarID int64) (*auth.Claims, error)
}

// Relay handles chat and overlay invocations.
type Relay interface {
	BroadcastOverlay(ctx context.Context, webinarID, userID int64, token string, o realtime.Overlay) error
	SendChat(ctx context.Context, connID string, webinarID int64, name, text string) (*realtime.ChatMessage, error)
}

// Announcer tells a webinar that a participant left.
type Announcer interface {
	BroadcastUserDisconnected(webinarID, userID int64)
}

// Handler upgrades /hub requests and serves each connection.
type Handler struct {
	hub       *realtime.Hub
	registry  Registry
	webinars  WebinarLookup
	tokens    TokenValidator
	relay     Relay
	announcer Announcer
	opts      realtime.Options
	logger    *zap.Logger
}

// NewHandler creates the hub endpoint handler.
func NewHandler(hub *realtime.Hub, registry Registry, webinars WebinarLookup, tokens TokenValidator,
	relay Relay, announcer Announcer, opts realtime.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:       hub,
		registry:  registry,
		webinars:  webinars,
		tokens:    tokens,
		relay:     relay,
		announcer: announcer,
		opts:      opts,
		logger:    logger,
	}
}

// ServeWs handles GET /hub?webinarId=&userId=&role=[&access_token=].
// Every upgrade is accepted. A connection without a valid webinar stays untracked
// and can only Ping.
func (h *Handler) ServeWs(c *gin.Context) {
	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := realtime.NewClient(h.hub, conn, h.opts, h.logger)
	h.hub.Register(client)
	metrics.WebSocketConnections.Inc()

	p, err := presence.ParseConnectParams(c.Query("webinarId"), c.Query("userId"), c.Query("role"))
	if err == nil {
		p, err = h.resolve(client.ID, p, c.Query("access_token"))
	}
	if err != nil {
		if !errors.Is(err, presence.ErrInvalidWebinar) {
			h.logger.Error("resolve connection", zap.String("connection_id", client.ID), zap.Error(err))
		}
		client.Send(realtime.EventConnected, realtime.Connected{
			Version:      realtime.PayloadVersion,
			ConnectionID: client.ID,
			Message:      "Connected without a webinar",
		})
		client.Run(h)
		return
	}

	client.WebinarID = p.WebinarID
	client.UserID = p.UserID
	client.Role = p.Role
	client.Send(realtime.EventConnected, realtime.Connected{
		Version:      realtime.PayloadVersion,
		ConnectionID: client.ID,
		WebinarID:    p.WebinarID,
		UserID:       p.UserID,
		Role:         string(p.Role),
		Message:      "Connected",
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	_, err = h.registry.Register(ctx, client.ID, p.WebinarID, p.UserID, p.Role)
	cancel()
	if err != nil {
		h.logger.Error("register participant", zap.Error(err),
			zap.String("connection_id", client.ID), zap.Int64("webinar_id", p.WebinarID))
		client.WebinarID = 0
		h.sendError(client, "", "could not join webinar")
	}
	client.Run(h)
}

// resolve checks the webinar exists, fills in a synthetic user id and decides the role.
// A host role without a matching broadcast token is downgraded to viewer.
func (h *Handler) resolve(connID string, p presence.ConnectParams, accessToken string) (presence.ConnectParams, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := h.webinars.GetByID(ctx, p.WebinarID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return p, presence.ErrInvalidWebinar
		}
		return p, err
	}
	if p.Role == models.ParticipantHost {
		claims, err := h.tokens.ValidateBroadcast(accessToken, p.WebinarID)
		switch {
		case err != nil, p.UserID != 0 && claims.UserID != p.UserID:
			h.logger.Info("host connect without broadcast token, joining as viewer",
				zap.String("connection_id", connID), zap.Int64("webinar_id", p.WebinarID))
			p.Role = models.ParticipantViewer
		default:
			p.UserID = claims.UserID
		}
	}
	if p.UserID <= 0 {
		p.UserID = presence.SyntheticUserID(connID)
	}
	return p, nil
}

// Closed deregisters a tracked connection and tells its webinar the user left.
func (h *Handler) Closed(c *realtime.Client) {
	metrics.WebSocketConnections.Dec()
	if !c.Tracked() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	p, err := h.registry.Deregister(ctx, c.ID)
	if err != nil {
		h.logger.Error("deregister participant", zap.Error(err), zap.String("connection_id", c.ID))
		return
	}
	if p != nil {
		h.announcer.BroadcastUserDisconnected(p.WebinarID, p.UserID)
	}
}

func (h *Handler) sendError(c *realtime.Client, invocation, message string) {
	c.Send(realtime.EventError, realtime.ErrorEvent{
		Version:    realtime.PayloadVersion,
		Invocation: invocation,
		Message:    message,
	})
}
