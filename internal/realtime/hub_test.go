package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(h *Hub, id string, buffer int) *Client {
	c := &Client{
		ID:     id,
		hub:    h,
		send:   make(chan WSMessage, buffer),
		done:   make(chan struct{}),
		groups: make(map[string]struct{}),
		logger: zap.NewNop(),
	}
	h.Register(c)
	return c
}

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestRouterBroadcastOnlyReachesGroup(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	r := NewRouter(h)
	a := newTestClient(h, "a", 8)
	b := newTestClient(h, "b", 8)
	other := newTestClient(h, "c", 8)

	require.True(t, r.Join(10, "a"))
	require.True(t, r.Join(10, "b"))
	require.True(t, r.Join(11, "c"))

	r.BroadcastCounts(10, 1, 2)

	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, EventCountsUpdated, msgs[0].Event)
		var p CountsUpdated
		require.NoError(t, json.Unmarshal(msgs[0].Data, &p))
		assert.Equal(t, CountsUpdated{Version: PayloadVersion, WebinarID: 10, Viewers: 1, Participants: 2}, p)
	}
	assert.Empty(t, drain(other))
}

func TestJoinUnknownConnection(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	assert.False(t, NewRouter(h).Join(1, "missing"))
	assert.Equal(t, 0, h.GroupSize("1"))
}

func TestUnregisterLeavesAllGroups(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	c := newTestClient(h, "a", 4)
	h.AddToGroup("1", "a")
	h.AddToGroup("2", "a")

	h.Unregister(c)

	assert.Equal(t, 0, h.GroupSize("1"))
	assert.Equal(t, 0, h.GroupSize("2"))
	assert.False(t, h.SendToClient("a", EventPong, Pong{}))
}

func TestFullBufferDropsForThatClientOnly(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	slow := newTestClient(h, "slow", 1)
	fast := newTestClient(h, "fast", 4)
	h.AddToGroup("5", "slow")
	h.AddToGroup("5", "fast")

	h.Broadcast("5", EventChatMessage, ChatMessage{Text: "one"})
	h.Broadcast("5", EventChatMessage, ChatMessage{Text: "two"})

	assert.Len(t, drain(slow), 1)
	assert.Len(t, drain(fast), 2)
}

func TestDisconnectSendsForceDisconnectThenCloses(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	c := newTestClient(h, "a", 4)

	require.True(t, h.Disconnect("a", "logged in elsewhere", "/login"))

	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.Equal(t, EventForceDisconnect, msgs[0].Event)
	var p ForceDisconnect
	require.NoError(t, json.Unmarshal(msgs[0].Data, &p))
	assert.Equal(t, "logged in elsewhere", p.Reason)
	assert.Equal(t, "/login", p.NewLocation)

	select {
	case <-c.done:
	default:
		t.Fatal("client not closed")
	}
	assert.False(t, c.enqueue(WSMessage{Event: EventPong}))
	assert.False(t, h.Disconnect("missing", "x", "/"))
}

type fakeBackplane struct {
	mu        sync.Mutex
	handlers  map[string]func(string, []byte)
	published int
	fail      bool
	subErr    error
}

func (f *fakeBackplane) Publish(group, event string, payload []byte) error {
	f.mu.Lock()
	f.published++
	fail := f.fail
	handler := f.handlers[group]
	f.mu.Unlock()
	if fail {
		return errors.New("redis down")
	}
	if handler != nil {
		handler(event, payload)
	}
	return nil
}

func (f *fakeBackplane) Subscribe(group string, handler func(string, []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.handlers[group] = handler
	return func() {
		f.mu.Lock()
		delete(f.handlers, group)
		f.mu.Unlock()
	}, nil
}

func TestBackplaneDeliversOnce(t *testing.T) {
	bp := &fakeBackplane{handlers: map[string]func(string, []byte){}}
	h := NewHub(zap.NewNop(), bp, bp)
	c := newTestClient(h, "a", 4)
	h.AddToGroup("9", "a")

	h.Broadcast("9", EventOverlay, Overlay{Kind: OverlayText, Text: "hi"})

	assert.Len(t, drain(c), 1)
	assert.Equal(t, 1, bp.published)

	h.RemoveFromGroup("9", "a")
	bp.mu.Lock()
	_, subscribed := bp.handlers["9"]
	bp.mu.Unlock()
	assert.False(t, subscribed, "subscription cancelled when the group empties")
}

func TestBackplaneFailureFallsBackToLocal(t *testing.T) {
	bp := &fakeBackplane{handlers: map[string]func(string, []byte){}, fail: true}
	h := NewHub(zap.NewNop(), bp, bp)
	c := newTestClient(h, "a", 4)
	h.AddToGroup("9", "a")

	h.Broadcast("9", EventOverlay, Overlay{Kind: OverlayClear})

	assert.Len(t, drain(c), 1)
}

func TestBackplaneSubscribeFailureDeliversLocally(t *testing.T) {
	bp := &fakeBackplane{handlers: map[string]func(string, []byte){}, subErr: errors.New("subscribe timeout")}
	h := NewHub(zap.NewNop(), bp, bp)
	c := newTestClient(h, "a", 4)
	require.True(t, h.AddToGroup("9", "a"))

	h.Broadcast("9", EventChatMessage, ChatMessage{Text: "one"})
	h.Broadcast("9", EventChatMessage, ChatMessage{Text: "two"})

	assert.Equal(t, 2, bp.published, "other instances still get the broadcast")
	assert.Len(t, drain(c), 2)
}

func TestBackplaneResubscribesAfterRetryInterval(t *testing.T) {
	bp := &fakeBackplane{handlers: map[string]func(string, []byte){}, subErr: errors.New("subscribe timeout")}
	h := NewHub(zap.NewNop(), bp, bp)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	c := newTestClient(h, "a", 8)
	require.True(t, h.AddToGroup("9", "a"))

	bp.mu.Lock()
	bp.subErr = nil
	bp.mu.Unlock()

	// Within the retry interval the group stays on local delivery.
	h.Broadcast("9", EventOverlay, Overlay{Kind: OverlayClear})
	assert.Len(t, drain(c), 1)
	bp.mu.Lock()
	_, subscribed := bp.handlers["9"]
	bp.mu.Unlock()
	assert.False(t, subscribed)

	now = now.Add(DefaultSubscribeRetry)
	h.Broadcast("9", EventOverlay, Overlay{Kind: OverlayClear})
	assert.Len(t, drain(c), 1, "delivered once through the new subscription")
	bp.mu.Lock()
	_, subscribed = bp.handlers["9"]
	bp.mu.Unlock()
	assert.True(t, subscribed)
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "42", GroupName(42))
}
