package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

type fakeWebinars map[int64]*models.Webinar

func (f fakeWebinars) GetByID(_ context.Context, id int64) (*models.Webinar, error) {
	w, ok := f[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return w, nil
}

func (f fakeWebinars) ListUpcoming(_ context.Context, now time.Time, window time.Duration) ([]models.Webinar, error) {
	var out []models.Webinar
	for _, w := range f {
		if w.ScheduledAt.Add(window).After(now) {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f fakeWebinars) ListRegisteredBy(_ context.Context, userID int64) ([]models.Webinar, error) {
	if userID != 9 {
		return nil, nil
	}
	return []models.Webinar{*f[1]}, nil
}

func (f fakeWebinars) ListByHost(_ context.Context, hostID int64) ([]models.Webinar, error) {
	var out []models.Webinar
	for _, w := range f {
		if w.HostUserID == hostID {
			out = append(out, *w)
		}
	}
	return out, nil
}

type fakeUsers map[int64]*models.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return u, nil
}

type fakeRegs map[[2]int64]*models.Registration

func (f fakeRegs) GetActive(_ context.Context, webinarID, userID int64) (*models.Registration, error) {
	r, ok := f[[2]int64{webinarID, userID}]
	if !ok {
		return nil, database.ErrNotFound
	}
	return r, nil
}

type fakeSubs map[int64]*models.Subscription

func (f fakeSubs) Current(_ context.Context, userID int64, now time.Time) (*models.Subscription, error) {
	s, ok := f[userID]
	if !ok || !s.IsCurrent(now) {
		return nil, database.ErrNotFound
	}
	return s, nil
}

type chanSink struct {
	got chan models.WebinarAccess
	err error
}

func (s *chanSink) Record(_ context.Context, a models.WebinarAccess) error {
	s.got <- a
	return s.err
}

func newTestService(t *testing.T, sink AuditSink, now time.Time) *Service {
	t.Helper()
	webinars := fakeWebinars{
		1: {ID: 1, Title: "Free", ScheduledAt: scheduled, RequiredTier: models.TierFree, Status: models.StatusScheduled, HostUserID: 2},
		2: {ID: 2, Title: "Paid", ScheduledAt: scheduled, RequiredTier: models.TierPaid, PriceCents: 900, Status: models.StatusLive, HostUserID: 2},
	}
	users := fakeUsers{
		2:  {ID: 2, Role: models.RoleHost, IsActive: true},
		9:  {ID: 9, Role: models.RoleGuest, IsActive: true},
		10: {ID: 10, Role: models.RoleGuest, IsActive: false},
	}
	regs := fakeRegs{
		{1, 9}:  {WebinarID: 1, UserID: 9, SubscriptionUsed: models.TierFree, IsActive: true},
		{2, 9}:  {WebinarID: 2, UserID: 9, SubscriptionUsed: models.TierFree, IsActive: true},
		{1, 10}: {WebinarID: 1, UserID: 10, SubscriptionUsed: models.TierFree, IsActive: true},
	}
	svc := NewService(webinars, users, regs, fakeSubs{}, sink, DefaultWindow, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCheckGrantedWithinWindowIsAudited(t *testing.T) {
	sink := &chanSink{got: make(chan models.WebinarAccess, 1)}
	svc := newTestService(t, sink, time.Date(2025, 10, 5, 20, 0, 0, 0, time.UTC))

	d, err := svc.Check(context.Background(), 1, 9, Client{IPAddress: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.True(t, d.CanAccess)
	assert.Equal(t, 4*time.Hour, d.RemainingTime)

	select {
	case a := <-sink.got:
		assert.Equal(t, int64(1), a.WebinarID)
		assert.Equal(t, int64(9), a.UserID)
		assert.Equal(t, "10.0.0.1", a.IPAddress)
	case <-time.After(time.Second):
		t.Fatal("audit row not recorded")
	}
}

func TestCheckExpiredIsNotAudited(t *testing.T) {
	sink := &chanSink{got: make(chan models.WebinarAccess, 1)}
	svc := newTestService(t, sink, time.Date(2025, 10, 6, 1, 0, 0, 0, time.UTC))

	d, err := svc.Check(context.Background(), 1, 9, Client{})
	require.NoError(t, err)
	assert.False(t, d.CanAccess)
	assert.Equal(t, ReasonExpired, d.Reason)

	select {
	case <-sink.got:
		t.Fatal("denied access must not be audited")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCheckAuditFailureDoesNotChangeDecision(t *testing.T) {
	sink := &chanSink{got: make(chan models.WebinarAccess, 1), err: errors.New("redis down")}
	svc := newTestService(t, sink, scheduled.Add(time.Minute))

	d, err := svc.Check(context.Background(), 1, 9, Client{})
	require.NoError(t, err)
	assert.True(t, d.CanAccess)
	<-sink.got
}

func TestCheckPaidWebinarWithoutSubscription(t *testing.T) {
	svc := newTestService(t, nil, scheduled.Add(time.Minute))

	d, err := svc.Check(context.Background(), 2, 9, Client{})
	require.NoError(t, err)
	assert.False(t, d.CanAccess)
	assert.Equal(t, ReasonSubscriptionRequired, d.Reason)
}

func TestCheckStaffAndInactive(t *testing.T) {
	svc := newTestService(t, nil, scheduled.Add(-24*time.Hour))

	d, err := svc.Check(context.Background(), 2, 2, Client{})
	require.NoError(t, err)
	assert.True(t, d.CanAccess)

	d, err = svc.Check(context.Background(), 1, 10, Client{})
	require.NoError(t, err)
	assert.False(t, d.CanAccess)
	assert.Equal(t, ReasonInactive, d.Reason)
}

func TestCheckNotFound(t *testing.T) {
	svc := newTestService(t, nil, scheduled)

	_, err := svc.Check(context.Background(), 42, 9, Client{})
	assert.ErrorIs(t, err, ErrWebinarNotFound)
	_, err = svc.Check(context.Background(), 1, 42, Client{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDashboard(t *testing.T) {
	svc := newTestService(t, nil, scheduled.Add(time.Hour))

	d, err := svc.Dashboard(context.Background(), 9)
	require.NoError(t, err)
	assert.Len(t, d.Upcoming, 2)
	require.Len(t, d.Registered, 1)
	assert.True(t, d.Registered[0].IsRegistered)
	assert.True(t, d.Registered[0].IsAccessible)
	assert.False(t, d.Registered[0].IsLive)
	assert.Empty(t, d.Hosted)

	d, err = svc.Dashboard(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, d.Hosted, 2)
	for _, item := range d.Hosted {
		assert.Equal(t, item.Status == models.StatusLive, item.IsLive)
	}

	_, err = svc.Dashboard(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
