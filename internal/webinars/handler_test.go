package webinars

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/models"
)

func patchWebinar(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateHandlerPartialBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, store := newTestService()
	created, err := svc.Create(context.Background(), 10, models.RoleHost, Input{
		Title:        "Pricing 101",
		Description:  "numbers",
		ScheduledAt:  start,
		StreamURL:    "https://stream.example.com/p",
		RequiredTier: models.TierPaid,
		PriceCents:   1500,
	})
	require.NoError(t, err)

	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	r.PATCH("/webinars/:id", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, int64(10))
		c.Set(middleware.ContextUserRole, string(models.RoleHost))
	}, h.Update)

	w := patchWebinar(r, "/webinars/1", `{"title":"Pricing 102"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored := store.rows[created.ID]
	assert.Equal(t, "Pricing 102", stored.Title)
	assert.Equal(t, "numbers", stored.Description)
	assert.Equal(t, "https://stream.example.com/p", stored.StreamURL)
	assert.Equal(t, 1500, stored.PriceCents)

	w = patchWebinar(r, "/webinars/1", `{"stream_url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = patchWebinar(r, "/webinars/1", `{"scheduled_at":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "https://stream.example.com/p", store.rows[created.ID].StreamURL)
}
