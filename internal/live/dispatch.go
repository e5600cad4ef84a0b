package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/metrics"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/internal/relay"
	"github.com/aura-webinar/live/pkg/response"
)

// invocation is the data of a client -> server message.
type invocation struct {
	WebinarID int64           `json:"webinarId"`
	Payload   json.RawMessage `json:"payload"`
	Token     string          `json:"token"`
}

type chatPayload struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Dispatch runs one client invocation. Failures are answered with an Error event to the caller only.
func (h *Handler) Dispatch(c *realtime.Client, msg realtime.WSMessage) {
	var inv invocation
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &inv); err != nil {
			h.sendError(c, msg.Event, "malformed invocation")
			return
		}
	}
	if inv.WebinarID == 0 {
		inv.WebinarID = c.WebinarID
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var err error
	switch msg.Event {
	case realtime.InvokePing:
		c.Send(realtime.EventPong, realtime.Pong{Version: realtime.PayloadVersion, At: time.Now().UTC()})
	case realtime.InvokeGetViewerCount:
		err = h.viewerCount(ctx, c, inv)
	case realtime.InvokeSendChatMessage:
		err = h.chat(ctx, c, inv)
	case realtime.InvokeBroadcastOverlay:
		err = h.overlay(ctx, c, inv)
	default:
		h.sendError(c, msg.Event, "unknown invocation")
		return
	}
	metrics.RealtimeInvocationsTotal.WithLabelValues(msg.Event, metrics.Result(err)).Inc()
	if err != nil {
		h.sendError(c, msg.Event, clientMessage(err))
		if !isClientError(err) {
			h.logger.Error("invocation failed", zap.String("invocation", msg.Event),
				zap.String("connection_id", c.ID), zap.Error(err))
		}
	}
}

func (h *Handler) viewerCount(ctx context.Context, c *realtime.Client, inv invocation) error {
	if inv.WebinarID <= 0 {
		return errNoWebinar
	}
	viewers, participants, err := h.registry.CountsFor(ctx, inv.WebinarID)
	if err != nil {
		return err
	}
	c.Send(realtime.EventCountsUpdated, realtime.CountsUpdated{
		Version:      realtime.PayloadVersion,
		WebinarID:    inv.WebinarID,
		Viewers:      viewers,
		Participants: participants,
	})
	return nil
}

func (h *Handler) chat(ctx context.Context, c *realtime.Client, inv invocation) error {
	var p chatPayload
	var err error
	raw := bytes.TrimSpace(inv.Payload)
	switch {
	case len(raw) == 0:
	case raw[0] == '"':
		err = json.Unmarshal(raw, &p.Text)
	default:
		err = json.Unmarshal(raw, &p)
	}
	if err != nil {
		return relay.ErrInvalidMessage
	}
	_, err = h.relay.SendChat(ctx, c.ID, inv.WebinarID, p.Name, p.Text)
	return err
}

// overlay decodes the payload as a typed overlay. A payload without a kind is
// relayed as a custom overlay carrying the raw object.
func (h *Handler) overlay(ctx context.Context, c *realtime.Client, inv invocation) error {
	if !c.Tracked() {
		return relay.ErrForbidden
	}
	var o realtime.Overlay
	if len(inv.Payload) > 0 {
		if err := json.Unmarshal(inv.Payload, &o); err != nil {
			return relay.ErrInvalidMessage
		}
	}
	if o.Kind == "" {
		o = realtime.Overlay{Kind: realtime.OverlayCustom, Data: inv.Payload}
	}
	return h.relay.BroadcastOverlay(ctx, inv.WebinarID, c.UserID, inv.Token, o)
}

var errNoWebinar = errors.New("webinarId is required")

func isClientError(err error) bool {
	return errors.Is(err, relay.ErrForbidden) ||
		errors.Is(err, relay.ErrNotParticipant) ||
		errors.Is(err, relay.ErrInvalidMessage) ||
		errors.Is(err, errNoWebinar)
}

func clientMessage(err error) string {
	if isClientError(err) {
		return err.Error()
	}
	return response.MsgServerError
}
