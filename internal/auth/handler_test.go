package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service, *fakeSessions) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())
	svc, _, sessions := newTestService()
	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	r.POST("/login-viewer", h.LoginViewer)
	authed := r.Group("", middleware.JWT(svc.jwt))
	authed.GET("/users/me", h.Me)
	authed.POST("/auth/broadcast-token/:webinarId", middleware.RequireRole("host", "admin"), h.BroadcastToken)
	return r, svc, sessions
}

func postLogin(r *gin.Engine, body string) (*httptest.ResponseRecorder, LoginViewerResponse) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login-viewer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	var resp LoginViewerResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestLoginViewerHandler(t *testing.T) {
	r, _, sessions := newTestRouter(t)

	w, resp := postLogin(r, `{"name":"Asha","mobile":"9876543210"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Token)
	assert.NotZero(t, resp.UserID)
	assert.Equal(t, "guest", resp.Role)

	sessions.active[resp.UserID] = true
	w, resp = postLogin(r, `{"name":"Asha","mobile":"9876543210"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Success)
	assert.True(t, resp.ShouldLogoutOther)
	assert.Empty(t, resp.Token)

	w, resp = postLogin(r, `{"name":"Asha","mobile":"9876543210","forceLogout":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Token)
}

func TestLoginViewerHandlerValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w, resp := postLogin(r, `{"name":"Asha","mobile":"98765"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, ErrInvalidMobile.Error(), resp.Message)

	w, resp = postLogin(r, `{"mobile":"9876543210"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Name is required", resp.Message)

	w, _ = postLogin(r, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeAndBroadcastTokenHandlers(t *testing.T) {
	r, svc, _ := newTestRouter(t)
	_, login := postLogin(r, `{"name":"Asha","mobile":"9876543210"}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mobile":"9876543210"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/auth/broadcast-token/1", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code, "guests cannot get broadcast tokens")

	hostToken, err := svc.jwt.GenerateSession(10, "9123456789", "host")
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/auth/broadcast-token/1", nil)
	req.Header.Set("Authorization", "Bearer "+hostToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"jti"`)
}
