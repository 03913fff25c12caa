package handlers

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/config"
	"quickbite/internal/domain"
	"quickbite/internal/realtime"
	"quickbite/internal/repos"
	"quickbite/internal/services"
)

func TestWriteEventFraming(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	err := writeEvent(w, realtime.Event{Type: realtime.EventOrderStatus, OrderID: "o-1", Users: []string{"u-alice"}, At: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "event: "+realtime.EventOrderStatus+"\ndata: {"), out)
	assert.True(t, strings.HasSuffix(out, "}\n\n"), out)
	assert.Contains(t, out, `"order_id":"o-1"`)
	assert.NotContains(t, out, "u-alice", "recipients are not sent to clients")
}

func TestStreamEventsUntilClosed(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	events := make(chan realtime.Event, 2)
	events <- realtime.Event{Type: "a", OrderID: "o-1"}
	events <- realtime.Event{Type: "b", OrderID: "o-1"}
	close(events)

	n := streamEvents(w, events, time.Hour)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n\n"))
	assert.Less(t, strings.Index(buf.String(), "event: a"), strings.Index(buf.String(), "event: b"))
}

func TestStreamEventsHeartbeat(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	events := make(chan realtime.Event)
	go func() {
		time.Sleep(60 * time.Millisecond)
		close(events)
	}()

	n := streamEvents(w, events, 10*time.Millisecond)
	assert.Zero(t, n)
	assert.Contains(t, buf.String(), ": ping\n\n")
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("client gone") }

func TestStreamEventsStopsWhenClientLeaves(t *testing.T) {
	w := bufio.NewWriter(brokenWriter{})
	events := make(chan realtime.Event, 1)
	events <- realtime.Event{Type: "a"}

	done := make(chan int)
	go func() { done <- streamEvents(w, events, time.Hour) }()
	select {
	case n := <-done:
		assert.Zero(t, n)
	case <-time.After(time.Second):
		t.Fatal("stream kept running after a write error")
	}
}

// hangupWriter accepts writes until the client hangs up.
type hangupWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (w *hangupWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, errors.New("client gone")
	}
	return w.buf.Write(p)
}

func (w *hangupWriter) hangup() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *hangupWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func streamFixture(t *testing.T) (*Deps, *domain.User, *domain.User, *domain.Order) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	d := NewDeps(db, config.Config{JWTSecret: []byte("test-secret"), AccessTokenTTL: time.Hour}, realtime.NewHub())

	users := repos.NewUserRepo(db)
	alice, err := users.ByID(t.Context(), "u-alice")
	require.NoError(t, err)
	owner, err := users.ByID(t.Context(), "u-owner")
	require.NoError(t, err)
	o, err := d.Orders.Place(t.Context(), alice, services.PlaceOrder{
		RestaurantID:    "r-chicken",
		Items:           []services.LineInput{{MenuItemID: "m-fried", Qty: 1}},
		DeliveryAddress: "서울 마포구 월드컵북로 1",
		DeliveryLat:     37.55,
		DeliveryLng:     126.92,
	})
	require.NoError(t, err)
	return d, alice, owner, o
}

func TestServeHoldsSubscriptionOnlyWhileWriting(t *testing.T) {
	d, alice, owner, o := streamFixture(t)
	topic := realtime.OrderTopic(o.ID)
	require.Zero(t, d.Hub.Subscribers(topic))

	w := &hangupWriter{}
	done := make(chan struct{})
	go func() {
		d.StreamHandler.serve(bufio.NewWriter(w), alice, o, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool { return d.Hub.Subscribers(topic) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, w.String(), "event: order.snapshot")

	_, err := d.Orders.Transition(t.Context(), owner, o.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(w.String(), "event: "+realtime.EventOrderStatus) }, time.Second, 5*time.Millisecond)

	w.hangup()
	_, err = d.Orders.Transition(t.Context(), owner, o.ID, domain.StatusPreparing, "")
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream kept running after the client hung up")
	}
	assert.Zero(t, d.Hub.Subscribers(topic))
}

func TestServeReleasesSubscriptionWhenSnapshotFails(t *testing.T) {
	d, alice, _, o := streamFixture(t)
	d.StreamHandler.serve(bufio.NewWriter(brokenWriter{}), alice, o, time.Hour)
	assert.Zero(t, d.Hub.Subscribers(realtime.OrderTopic(o.ID)))
}
