package webinars

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
	nextID int64
	rows   map[int64]*models.Webinar
}

func newMemStore() *memStore { return &memStore{rows: map[int64]*models.Webinar{}} }

func (m *memStore) Create(_ context.Context, w *models.Webinar) error {
	m.nextID++
	w.ID = m.nextID
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	c := *w
	m.rows[w.ID] = &c
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*models.Webinar, error) {
	w, ok := m.rows[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *w
	return &c, nil
}

func (m *memStore) ListUpcoming(_ context.Context, now time.Time, window time.Duration) ([]models.Webinar, error) {
	var out []models.Webinar
	for _, w := range m.rows {
		if !w.ScheduledAt.Before(now.Add(-window)) && w.Status != models.StatusCancelled {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *memStore) ListByHost(_ context.Context, hostID int64) ([]models.Webinar, error) {
	var out []models.Webinar
	for _, w := range m.rows {
		if w.HostUserID == hostID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, w *models.Webinar) error {
	if _, ok := m.rows[w.ID]; !ok {
		return database.ErrNotFound
	}
	c := *w
	m.rows[w.ID] = &c
	return nil
}

func (m *memStore) SetStatus(_ context.Context, id int64, from, to models.WebinarStatus) (time.Time, error) {
	w, ok := m.rows[id]
	if !ok || w.Status != from {
		return time.Time{}, database.ErrNotFound
	}
	w.Status = to
	w.UpdatedAt = time.Now()
	return w.UpdatedAt, nil
}

type fixedCounts struct{ v, p int }

func (f fixedCounts) CountsFor(context.Context, int64) (int, int, error) { return f.v, f.p, nil }

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return NewService(store, fixedCounts{3, 4}, 5*time.Hour, nil), store
}

var start = time.Date(2025, 10, 5, 19, 0, 0, 0, time.UTC)

func TestCreate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.Create(ctx, 10, models.RoleHost, Input{Title: " Launch ", ScheduledAt: start, HostUserID: 99})
	require.NoError(t, err)
	assert.Equal(t, "Launch", w.Title)
	assert.Equal(t, int64(10), w.HostUserID, "hosts cannot create for others")
	assert.Equal(t, models.StatusScheduled, w.Status)
	assert.Equal(t, models.TierFree, w.RequiredTier)
	assert.Equal(t, 60, w.DurationMinutes)

	w, err = svc.Create(ctx, 1, models.RoleAdmin, Input{Title: "Paid", ScheduledAt: start, RequiredTier: models.TierPaid, PriceCents: 500, HostUserID: 99})
	require.NoError(t, err)
	assert.Equal(t, int64(99), w.HostUserID)

	_, err = svc.Create(ctx, 5, models.RoleGuest, Input{Title: "x", ScheduledAt: start})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Create(ctx, 10, models.RoleHost, Input{Title: "", ScheduledAt: start})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, 10, models.RoleHost, Input{Title: "p", ScheduledAt: start, RequiredTier: models.TierPaid})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTransitionStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w, err := svc.Create(ctx, 10, models.RoleHost, Input{Title: "A", ScheduledAt: start})
	require.NoError(t, err)

	var seen []models.WebinarStatus
	svc.OnStatusChange(func(_ context.Context, w *models.Webinar, from models.WebinarStatus) {
		seen = append(seen, from, w.Status)
	})

	_, err = svc.TransitionStatus(ctx, 11, models.RoleHost, w.ID, models.StatusLive)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.TransitionStatus(ctx, 10, models.RoleHost, w.ID, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.TransitionStatus(ctx, 10, models.RoleHost, w.ID, models.StatusLive)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, got.Status)

	_, err = svc.TransitionStatus(ctx, 1, models.RoleAdmin, w.ID, models.StatusCompleted)
	require.NoError(t, err)

	assert.Equal(t, []models.WebinarStatus{
		models.StatusScheduled, models.StatusLive,
		models.StatusLive, models.StatusCompleted,
	}, seen)

	_, err = svc.Update(ctx, 10, models.RoleHost, w.ID, Patch{Title: ptr("B")})
	assert.ErrorIs(t, err, ErrFinished)
}

func ptr[T any](v T) *T { return &v }

func TestUpdateKeepsUnsetFields(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	w, err := svc.Create(ctx, 10, models.RoleHost, Input{
		Title:           "A",
		Description:     "about A",
		ScheduledAt:     start,
		DurationMinutes: 90,
		StreamURL:       "https://stream.example.com/a",
		RequiredTier:    models.TierPaid,
		PriceCents:      4900,
	})
	require.NoError(t, err)

	got, err := svc.Update(ctx, 10, models.RoleHost, w.ID, Patch{Title: ptr("A, renamed")})
	require.NoError(t, err)
	assert.Equal(t, "A, renamed", got.Title)
	assert.Equal(t, "about A", got.Description)
	assert.Equal(t, 90, got.DurationMinutes)
	assert.True(t, start.Equal(got.ScheduledAt))
	assert.Equal(t, "https://stream.example.com/a", got.StreamURL)
	assert.Equal(t, models.TierPaid, got.RequiredTier)
	assert.Equal(t, 4900, got.PriceCents)
	assert.Equal(t, "https://stream.example.com/a", store.rows[w.ID].StreamURL)

	got, err = svc.Update(ctx, 10, models.RoleHost, w.ID, Patch{Description: ptr(""), RequiredTier: ptr(models.TierFree), PriceCents: ptr(0)})
	require.NoError(t, err)
	assert.Empty(t, got.Description, "explicit empty value clears the field")
	assert.Equal(t, models.TierFree, got.RequiredTier)
	assert.Equal(t, "A, renamed", got.Title)

	_, err = svc.Update(ctx, 10, models.RoleHost, w.ID, Patch{RequiredTier: ptr(models.TierPaid)})
	assert.ErrorIs(t, err, ErrInvalidInput, "paid without a price")
}

func TestCounts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w, _ := svc.Create(ctx, 10, models.RoleHost, Input{Title: "A", ScheduledAt: start})

	v, p, err := svc.Counts(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 4, p)

	_, _, err = svc.Counts(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
