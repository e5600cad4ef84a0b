package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/auth"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/internal/relay"
	"github.com/aura-webinar/live/pkg/database"
)

// memRegistry is an in-memory presence registry driving a real router.
type memRegistry struct {
	mu     sync.Mutex
	router *realtime.Router
	byConn map[string]*models.Participant
}

func (m *memRegistry) countsLocked(webinarID int64) (int, int) {
	var viewers, participants int
	for _, p := range m.byConn {
		if p.WebinarID != webinarID {
			continue
		}
		participants++
		if p.Role == models.ParticipantViewer {
			viewers++
		}
	}
	return viewers, participants
}

func (m *memRegistry) Register(_ context.Context, connID string, webinarID, userID int64, role models.ParticipantRole) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.Participant{WebinarID: webinarID, UserID: userID, ConnectionID: connID, Role: role}
	m.byConn[connID] = p
	m.router.Join(webinarID, connID)
	v, n := m.countsLocked(webinarID)
	m.router.BroadcastCounts(webinarID, v, n)
	return p, nil
}

func (m *memRegistry) Deregister(_ context.Context, connID string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byConn[connID]
	if !ok {
		return nil, nil
	}
	delete(m.byConn, connID)
	m.router.Leave(p.WebinarID, connID)
	v, n := m.countsLocked(p.WebinarID)
	m.router.BroadcastCounts(p.WebinarID, v, n)
	return p, nil
}

func (m *memRegistry) CountsFor(_ context.Context, webinarID int64) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, n := m.countsLocked(webinarID)
	return v, n, nil
}

func (m *memRegistry) RoleOf(_ context.Context, userID, webinarID int64) (models.ParticipantRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byConn {
		if p.UserID == userID && p.WebinarID == webinarID {
			return p.Role, nil
		}
	}
	return "", database.ErrNotFound
}

func (m *memRegistry) Lookup(_ context.Context, connID string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byConn[connID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return p, nil
}

type webinarMap map[int64]*models.Webinar

func (w webinarMap) GetByID(_ context.Context, id int64) (*models.Webinar, error) {
	if x, ok := w[id]; ok {
		return x, nil
	}
	return nil, database.ErrNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	hub := realtime.NewHub(logger, nil, nil)
	router := realtime.NewRouter(hub)
	registry := &memRegistry{router: router, byConn: make(map[string]*models.Participant)}
	jwt := auth.NewJWTService("test-secret", 5, 24)
	relaySvc := relay.NewService(registry, jwt, router, logger)
	webinars := webinarMap{1: {ID: 1, Title: "Launch", Status: models.StatusLive}}

	h := NewHandler(hub, registry, webinars, jwt, relaySvc, router, realtime.Options{}, logger)
	r := gin.New()
	r.GET("/hub", h.ServeWs)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, jwt
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hub?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until one with the given event arrives and decodes its data into v.
func readUntil(t *testing.T, conn *websocket.Conn, event string, v interface{}) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg realtime.WSMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", event)
		if msg.Event == event {
			if v != nil {
				require.NoError(t, json.Unmarshal(msg.Data, v))
			}
			return
		}
	}
}

func invoke(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(realtime.WSMessage{Event: event, Data: raw}))
}

func TestHubViewerLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	viewer := dial(t, srv, "webinarId=1&userId=9&role=viewer")
	var connected realtime.Connected
	readUntil(t, viewer, realtime.EventConnected, &connected)
	assert.NotEmpty(t, connected.ConnectionID)
	assert.Equal(t, int64(1), connected.WebinarID)
	assert.Equal(t, int64(9), connected.UserID)
	assert.Equal(t, "viewer", connected.Role)

	var counts realtime.CountsUpdated
	readUntil(t, viewer, realtime.EventCountsUpdated, &counts)
	assert.Equal(t, 1, counts.Viewers)
	assert.Equal(t, 1, counts.Participants)

	invoke(t, viewer, realtime.InvokePing, nil)
	readUntil(t, viewer, realtime.EventPong, nil)

	invoke(t, viewer, realtime.InvokeGetViewerCount, map[string]int64{"webinarId": 1})
	readUntil(t, viewer, realtime.EventCountsUpdated, &counts)
	assert.Equal(t, 1, counts.Participants)
}

func TestHubHostRoleNeedsBroadcastToken(t *testing.T) {
	srv, jwt := newTestServer(t)

	spoof := dial(t, srv, "webinarId=1&userId=5&role=host")
	var connected realtime.Connected
	readUntil(t, spoof, realtime.EventConnected, &connected)
	assert.Equal(t, "viewer", connected.Role)

	token, _, err := jwt.GenerateBroadcast(2, models.RoleHost, 1)
	require.NoError(t, err)
	host := dial(t, srv, "webinarId=1&userId=2&role=host&access_token="+token)
	readUntil(t, host, realtime.EventConnected, &connected)
	assert.Equal(t, "host", connected.Role)

	var counts realtime.CountsUpdated
	readUntil(t, host, realtime.EventCountsUpdated, &counts)
	assert.Equal(t, 1, counts.Viewers)
	assert.Equal(t, 2, counts.Participants)
}

func TestHubChatOverlayAndDisconnect(t *testing.T) {
	srv, jwt := newTestServer(t)
	token, _, err := jwt.GenerateBroadcast(2, models.RoleHost, 1)
	require.NoError(t, err)

	host := dial(t, srv, "webinarId=1&userId=2&role=host&access_token="+token)
	readUntil(t, host, realtime.EventConnected, nil)
	viewer := dial(t, srv, "webinarId=1&userId=9")
	readUntil(t, viewer, realtime.EventConnected, nil)
	var counts realtime.CountsUpdated
	for counts.Participants != 2 {
		readUntil(t, host, realtime.EventCountsUpdated, &counts)
	}

	invoke(t, viewer, realtime.InvokeSendChatMessage, map[string]interface{}{
		"webinarId": 1,
		"payload":   map[string]string{"name": "Asha", "text": "hello"},
	})
	var chat realtime.ChatMessage
	readUntil(t, host, realtime.EventChatMessage, &chat)
	assert.Equal(t, "hello", chat.Text)
	assert.Equal(t, int64(9), chat.UserID)
	assert.NotEmpty(t, chat.ID)
	readUntil(t, viewer, realtime.EventChatMessage, nil)

	invoke(t, viewer, realtime.InvokeBroadcastOverlay, map[string]interface{}{
		"webinarId": 1,
		"payload":   map[string]string{"kind": "text", "text": "hijack"},
		"token":     token,
	})
	var rejected realtime.ErrorEvent
	readUntil(t, viewer, realtime.EventError, &rejected)
	assert.Equal(t, realtime.InvokeBroadcastOverlay, rejected.Invocation)

	invoke(t, host, realtime.InvokeBroadcastOverlay, map[string]interface{}{
		"webinarId": 1,
		"payload":   map[string]string{"kind": "text", "text": "Welcome"},
		"token":     token,
	})
	var overlay realtime.Overlay
	readUntil(t, viewer, realtime.EventOverlay, &overlay)
	assert.Equal(t, "Welcome", overlay.Text)
	assert.Equal(t, int64(2), overlay.SentBy)

	require.NoError(t, viewer.Close())
	var left realtime.UserDisconnected
	readUntil(t, host, realtime.EventUserDisconnected, &left)
	assert.Equal(t, int64(9), left.UserID)
}

func TestHubUntrackedConnection(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv, "webinarId=999&userId=9")
	var connected realtime.Connected
	readUntil(t, conn, realtime.EventConnected, &connected)
	assert.Zero(t, connected.WebinarID)

	invoke(t, conn, realtime.InvokeSendChatMessage, map[string]interface{}{"webinarId": 999, "payload": "hi"})
	var e realtime.ErrorEvent
	readUntil(t, conn, realtime.EventError, &e)
	assert.Equal(t, relay.ErrNotParticipant.Error(), e.Message)

	invoke(t, conn, realtime.InvokePing, nil)
	readUntil(t, conn, realtime.EventPong, nil)
}
