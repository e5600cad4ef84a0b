package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/live/internal/auth"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/pkg/database"
)

type fakeParticipants struct {
	byConn map[string]*models.Participant
}

func (f *fakeParticipants) RoleOf(_ context.Context, userID, webinarID int64) (models.ParticipantRole, error) {
	for _, p := range f.byConn {
		if p.UserID == userID && p.WebinarID == webinarID {
			return p.Role, nil
		}
	}
	return "", database.ErrNotFound
}

func (f *fakeParticipants) Lookup(_ context.Context, connID string) (*models.Participant, error) {
	p, ok := f.byConn[connID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return p, nil
}

type recorder struct {
	overlays []realtime.Overlay
	chats    []realtime.ChatMessage
}

func (r *recorder) BroadcastOverlay(webinarID int64, o realtime.Overlay) {
	o.WebinarID = webinarID
	r.overlays = append(r.overlays, o)
}

func (r *recorder) BroadcastChat(webinarID int64, m realtime.ChatMessage) {
	m.WebinarID = webinarID
	r.chats = append(r.chats, m)
}

func newTestService(t *testing.T) (*Service, *auth.JWTService, *recorder) {
	t.Helper()
	participants := &fakeParticipants{byConn: map[string]*models.Participant{
		"host-conn":   {WebinarID: 1, UserID: 2, ConnectionID: "host-conn", Role: models.ParticipantHost},
		"viewer-conn": {WebinarID: 1, UserID: 9, ConnectionID: "viewer-conn", Role: models.ParticipantViewer},
		"other-conn":  {WebinarID: 3, UserID: 11, ConnectionID: "other-conn", Role: models.ParticipantViewer},
	}}
	jwt := auth.NewJWTService("test-secret", 5, 24)
	rec := &recorder{}
	return NewService(participants, jwt, rec, nil), jwt, rec
}

func TestBroadcastOverlayRequiresHostRoleAndToken(t *testing.T) {
	svc, jwt, rec := newTestService(t)
	ctx := context.Background()

	hostToken, _, err := jwt.GenerateBroadcast(2, models.RoleHost, 1)
	require.NoError(t, err)
	otherWebinar, _, err := jwt.GenerateBroadcast(2, models.RoleHost, 3)
	require.NoError(t, err)
	viewerToken, _, err := jwt.GenerateBroadcast(9, models.RoleHost, 1)
	require.NoError(t, err)
	session, err := jwt.GenerateSession(2, "9876543210", models.RoleHost)
	require.NoError(t, err)

	overlay := realtime.Overlay{Kind: "text", Text: "Welcome"}

	require.NoError(t, svc.BroadcastOverlay(ctx, 1, 2, hostToken, overlay))
	require.Len(t, rec.overlays, 1)
	assert.Equal(t, int64(2), rec.overlays[0].SentBy)
	assert.Equal(t, int64(1), rec.overlays[0].WebinarID)

	tests := []struct {
		name   string
		userID int64
		token  string
	}{
		{"viewer with a valid broadcast token", 9, viewerToken},
		{"host with token for another webinar", 2, otherWebinar},
		{"host with a session token", 2, session},
		{"host with someone else's token", 2, viewerToken},
		{"host with garbage", 2, "not-a-token"},
		{"unknown user", 77, hostToken},
	}
	for _, tt := range tests {
		err := svc.BroadcastOverlay(ctx, 1, tt.userID, tt.token, overlay)
		assert.ErrorIs(t, err, ErrForbidden, tt.name)
	}
	assert.Len(t, rec.overlays, 1, "rejected overlays are never broadcast")
}

func TestBroadcastOverlayRequiresKind(t *testing.T) {
	svc, jwt, rec := newTestService(t)
	token, _, err := jwt.GenerateBroadcast(2, models.RoleHost, 1)
	require.NoError(t, err)

	err = svc.BroadcastOverlay(context.Background(), 1, 2, token, realtime.Overlay{Kind: "  "})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, rec.overlays)
}

func TestSendChat(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	m, err := svc.SendChat(ctx, "viewer-conn", 1, "Asha", "  hello  ")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "hello", m.Text)
	assert.Equal(t, int64(9), m.UserID)
	require.Len(t, rec.chats, 1)
	assert.Equal(t, m.ID, rec.chats[0].ID)

	second, err := svc.SendChat(ctx, "viewer-conn", 1, "Asha", "hello")
	require.NoError(t, err)
	assert.NotEqual(t, m.ID, second.ID, "no dedup, every message gets its own id")

	_, err = svc.SendChat(ctx, "other-conn", 1, "", "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.SendChat(ctx, "ghost", 1, "", "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.SendChat(ctx, "viewer-conn", 1, "", " ")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = svc.SendChat(ctx, "viewer-conn", 1, "", strings.Repeat("x", MaxChatLength+1))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Len(t, rec.chats, 2)
}

func TestBroadcastOverlayHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, jwt, rec := newTestService(t)
	r := gin.New()
	r.POST("/overlay/:webinarId", NewHandler(svc, nil).BroadcastOverlay)

	token, _, err := jwt.GenerateBroadcast(2, models.RoleHost, 1)
	require.NoError(t, err)

	post := func(userID, bearer, body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/overlay/1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if userID != "" {
			req.Header.Set(HeaderUserID, userID)
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post("2", token, `{"kind":"ticker","text":"Q&A in 5"}`))
	assert.Equal(t, http.StatusForbidden, post("9", token, `{"kind":"ticker"}`))
	assert.Equal(t, http.StatusUnauthorized, post("", token, `{"kind":"ticker"}`))
	assert.Equal(t, http.StatusUnauthorized, post("2", "", `{"kind":"ticker"}`))
	assert.Equal(t, http.StatusBadRequest, post("2", token, `{}`))
	require.Len(t, rec.overlays, 1)
	assert.Equal(t, "ticker", rec.overlays[0].Kind)
}
