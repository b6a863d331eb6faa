package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type recordingMirror struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (m *recordingMirror) Publish(event string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *recordingMirror) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func newTestClient(id string, buffer int) *Client {
	return &Client{ID: id, send: make(chan WSMessage, buffer)}
}

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m.Event)
		default:
			return out
		}
	}
}

func TestHub_DeliverBroadcastAndDirected(t *testing.T) {
	mirror := &recordingMirror{}
	h := NewHub(zaptest.NewLogger(t), mirror)
	a, b := newTestClient("a", 8), newTestClient("b", 8)
	h.Register(a)
	h.Register(b)
	require.Equal(t, 2, h.Count())

	h.Deliver([]Outbound{
		{Target: All(), Message: WSMessage{Event: EventPollResults}},
		{Target: One("b"), Message: WSMessage{Event: EventKicked}},
		{Target: All(), Message: WSMessage{Event: EventRosterUpdated}},
		{Target: One("gone"), Message: WSMessage{Event: EventKicked}},
	})

	assert.Equal(t, []string{EventPollResults, EventRosterUpdated}, drain(a))
	assert.Equal(t, []string{EventPollResults, EventKicked, EventRosterUpdated}, drain(b))
	require.Eventually(t, func() bool { return len(mirror.published()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{EventPollResults, EventRosterUpdated}, mirror.published(), "only broadcasts are mirrored")
}

func TestHub_FullBufferDropsOnlyForThatClient(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t), nil)
	slow, fast := newTestClient("slow", 1), newTestClient("fast", 4)
	h.Register(slow)
	h.Register(fast)

	h.Deliver([]Outbound{
		{Target: All(), Message: WSMessage{Event: "one"}},
		{Target: All(), Message: WSMessage{Event: "two"}},
	})

	assert.Equal(t, []string{"one"}, drain(slow))
	assert.Equal(t, []string{"one", "two"}, drain(fast))
}

func TestHub_UnregisterTwiceIsSafe(t *testing.T) {
	mirror := &recordingMirror{err: errors.New("redis down")}
	h := NewHub(zap.NewNop(), mirror)
	c := newTestClient("a", 1)
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.Count())

	h.Deliver([]Outbound{{Target: All(), Message: WSMessage{Event: "x"}}})
	_, ok := <-c.send
	assert.False(t, ok, "send channel closed on unregister")
	require.Eventually(t, func() bool { return len(mirror.published()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	u := NewUpgrader([]string{"http://localhost:3000"})
	req := httptestRequest("http://localhost:3000")
	assert.True(t, u.CheckOrigin(req))
	assert.False(t, u.CheckOrigin(httptestRequest("http://evil.example")))
	assert.True(t, u.CheckOrigin(httptestRequest("")))

	assert.True(t, NewUpgrader(nil).CheckOrigin(httptestRequest("http://evil.example")))
	assert.True(t, NewUpgrader([]string{"*"}).CheckOrigin(httptestRequest("http://evil.example")))
}

func httptestRequest(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}
