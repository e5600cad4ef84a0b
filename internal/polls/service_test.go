package polls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/pkg/database"
)

type memStore struct {
	polls   map[int64]*models.Poll
	answers map[int64]map[int64]string
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{polls: make(map[int64]*models.Poll), answers: make(map[int64]map[int64]string)}
}

func (m *memStore) Create(_ context.Context, p *models.Poll) error {
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.polls[p.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*models.Poll, error) {
	p, ok := m.polls[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListByWebinar(_ context.Context, webinarID int64) ([]models.Poll, error) {
	var out []models.Poll
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.polls[id]; ok && p.WebinarID == webinarID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) Launch(_ context.Context, id int64) error {
	p := m.polls[id]
	if p.Launched {
		return database.ErrNotFound
	}
	p.Launched = true
	return nil
}

func (m *memStore) Close(_ context.Context, id int64) error {
	p := m.polls[id]
	if !p.Launched || p.Closed {
		return database.ErrNotFound
	}
	p.Closed = true
	return nil
}

func (m *memStore) Answer(_ context.Context, pollID, userID int64, option string) error {
	if m.answers[pollID] == nil {
		m.answers[pollID] = make(map[int64]string)
	}
	m.answers[pollID][userID] = option
	return nil
}

func (m *memStore) Tally(_ context.Context, pollID int64) (models.PollTally, error) {
	var t models.PollTally
	for _, o := range m.answers[pollID] {
		switch o {
		case "A":
			t.A++
		case "B":
			t.B++
		case "C":
			t.C++
		case "D":
			t.D++
		}
	}
	return t, nil
}

type hosts map[int64]int64

func (h hosts) HostOf(_ context.Context, webinarID int64) (int64, error) {
	id, ok := h[webinarID]
	if !ok {
		return 0, database.ErrNotFound
	}
	return id, nil
}

type sent struct {
	webinarID int64
	event     string
	payload   interface{}
}

type recorder struct{ sent []sent }

func (r *recorder) Broadcast(webinarID int64, event string, payload interface{}) {
	r.sent = append(r.sent, sent{webinarID, event, payload})
}

func TestPollLifecycle(t *testing.T) {
	out := &recorder{}
	svc := NewService(newMemStore(), hosts{1: 2}, out, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, 2, models.RoleHost, 1, Input{Question: "Best day?", Options: [4]string{"Mon", "Fri", "", ""}})
	require.NoError(t, err)
	assert.Empty(t, out.sent, "creating does not announce")

	assert.ErrorIs(t, svc.Answer(ctx, 9, p.ID, "A"), ErrNotOpen)

	_, err = svc.Launch(ctx, 2, models.RoleHost, p.ID)
	require.NoError(t, err)
	require.Len(t, out.sent, 1)
	assert.Equal(t, realtime.EventPollCreated, out.sent[0].event)
	created := out.sent[0].payload.(realtime.PollCreated)
	assert.Equal(t, []string{"Mon", "Fri"}, created.Options)

	require.NoError(t, svc.Answer(ctx, 9, p.ID, "a"))
	require.NoError(t, svc.Answer(ctx, 10, p.ID, "B"))
	require.NoError(t, svc.Answer(ctx, 9, p.ID, "B"), "answering again replaces the choice")
	assert.ErrorIs(t, svc.Answer(ctx, 11, p.ID, "C"), ErrInvalidInput)

	tally, err := svc.Close(ctx, 2, models.RoleHost, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollTally{B: 2}, tally)
	require.Len(t, out.sent, 2)
	closed := out.sent[1].payload.(realtime.PollClosed)
	assert.Equal(t, map[string]int{"A": 0, "B": 2}, closed.Results)

	assert.ErrorIs(t, svc.Answer(ctx, 12, p.ID, "A"), ErrNotOpen)
	_, err = svc.Close(ctx, 2, models.RoleHost, p.ID)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestPollAuthorization(t *testing.T) {
	svc := NewService(newMemStore(), hosts{1: 2}, &recorder{}, nil)
	ctx := context.Background()
	in := Input{Question: "Q", Options: [4]string{"x", "y"}}

	_, err := svc.Create(ctx, 3, models.RoleHost, 1, in)
	assert.ErrorIs(t, err, ErrForbidden, "host of another webinar")
	_, err = svc.Create(ctx, 9, models.RoleGuest, 1, in)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Create(ctx, 2, models.RoleHost, 7, in)
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := svc.Create(ctx, 99, models.RoleAdmin, 1, in)
	require.NoError(t, err)
	_, err = svc.Launch(ctx, 3, models.RoleHost, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, 2, models.RoleHost, 1, Input{Question: "Q", Options: [4]string{"x", "y", "", "z"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPollListHidesUnlaunched(t *testing.T) {
	svc := NewService(newMemStore(), hosts{1: 2}, &recorder{}, nil)
	ctx := context.Background()
	in := Input{Question: "Q", Options: [4]string{"x", "y"}}
	first, err := svc.Create(ctx, 2, models.RoleHost, 1, in)
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, models.RoleHost, 1, in)
	require.NoError(t, err)
	_, err = svc.Launch(ctx, 2, models.RoleHost, first.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, 1, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	visible, err := svc.List(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, first.ID, visible[0].ID)
}
