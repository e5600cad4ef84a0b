package streams

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

type memStore struct {
	sessions []*models.StreamSession
	raises   int
}

func (m *memStore) open(webinarID int64) *models.StreamSession {
	for _, s := range m.sessions {
		if s.WebinarID == webinarID && s.EndedAt == nil {
			return s
		}
	}
	return nil
}

func (m *memStore) Start(_ context.Context, webinarID int64) (*models.StreamSession, error) {
	if s := m.open(webinarID); s != nil {
		return s, nil
	}
	s := &models.StreamSession{ID: int64(len(m.sessions) + 1), WebinarID: webinarID, StartedAt: time.Now()}
	m.sessions = append(m.sessions, s)
	return s, nil
}

func (m *memStore) End(_ context.Context, webinarID int64) (*models.StreamSession, error) {
	s := m.open(webinarID)
	if s == nil {
		return nil, database.ErrNotFound
	}
	now := time.Now()
	s.EndedAt = &now
	return s, nil
}

func (m *memStore) RaisePeaks(_ context.Context, webinarID int64, viewers, participants int) error {
	m.raises++
	if s := m.open(webinarID); s != nil {
		s.PeakViewers = max(s.PeakViewers, viewers)
		s.PeakParticipants = max(s.PeakParticipants, participants)
	}
	return nil
}

func (m *memStore) ListByWebinar(_ context.Context, webinarID int64) ([]models.StreamSession, error) {
	var out []models.StreamSession
	for _, s := range m.sessions {
		if s.WebinarID == webinarID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListOpen(_ context.Context) ([]models.StreamSession, error) {
	var out []models.StreamSession
	for _, s := range m.sessions {
		if s.EndedAt == nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func TestTrackerRestoreResumesOpenSessions(t *testing.T) {
	ended := time.Now().Add(-time.Hour)
	store := &memStore{sessions: []*models.StreamSession{
		{ID: 1, WebinarID: 1, PeakViewers: 10, PeakParticipants: 12},
		{ID: 2, WebinarID: 2, PeakViewers: 4, PeakParticipants: 4, EndedAt: &ended},
	}}
	tr := NewTracker(store, nil)
	ctx := context.Background()

	n, err := tr.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tr.ObserveCounts(ctx, 1, 5, 6)
	assert.Zero(t, store.raises, "below the restored peak")
	tr.ObserveCounts(ctx, 1, 11, 13)
	assert.Equal(t, 1, store.raises)
	assert.Equal(t, 11, store.sessions[0].PeakViewers)
	assert.Equal(t, 13, store.sessions[0].PeakParticipants)

	tr.ObserveCounts(ctx, 2, 50, 50)
	assert.Equal(t, 1, store.raises, "ended sessions stay closed")
}

func TestTrackerRecordsPeaksOfLiveRun(t *testing.T) {
	store := &memStore{}
	tr := NewTracker(store, nil)
	ctx := context.Background()
	w := &models.Webinar{ID: 1}

	tr.ObserveCounts(ctx, 1, 5, 6)
	assert.Zero(t, store.raises, "no open session before going live")

	w.Status = models.StatusLive
	tr.OnStatusChange(ctx, w, models.StatusScheduled)
	tr.ObserveCounts(ctx, 1, 3, 4)
	tr.ObserveCounts(ctx, 1, 8, 9)
	tr.ObserveCounts(ctx, 1, 2, 3)
	tr.ObserveCounts(ctx, 1, 8, 9)
	assert.Equal(t, 2, store.raises, "only new peaks reach the store")

	w.Status = models.StatusCompleted
	tr.OnStatusChange(ctx, w, models.StatusLive)
	tr.ObserveCounts(ctx, 1, 20, 20)

	sessions, err := tr.Sessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].EndedAt)
	assert.Equal(t, 8, sessions[0].PeakViewers)
	assert.Equal(t, 9, sessions[0].PeakParticipants)
}

func TestTrackerCancelWithoutSession(t *testing.T) {
	store := &memStore{}
	tr := NewTracker(store, nil)
	tr.OnStatusChange(context.Background(), &models.Webinar{ID: 3, Status: models.StatusCancelled}, models.StatusScheduled)
	assert.Empty(t, store.sessions)
}
