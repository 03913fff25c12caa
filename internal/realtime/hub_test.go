package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversByTopic(t *testing.T) {
	h := NewHub()
	orderCh, cancelOrder := h.Subscribe(OrderTopic("o-1"))
	defer cancelOrder()
	userCh, cancelUser := h.Subscribe(UserTopic("u-alice"))
	defer cancelUser()
	otherCh, cancelOther := h.Subscribe(OrderTopic("o-2"))
	defer cancelOther()

	require.NoError(t, h.Publish(context.Background(), Event{
		Type: EventOrderStatus, OrderID: "o-1", Users: []string{"u-alice"}, Data: "confirmed",
	}))

	got := <-orderCh
	assert.Equal(t, EventOrderStatus, got.Type)
	assert.NotEmpty(t, got.At)
	assert.Equal(t, "confirmed", (<-userCh).Data)
	assert.Len(t, otherCh, 0)
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(OrderTopic("o-1"))
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, h.Publish(context.Background(), Event{Type: EventChatMessage, OrderID: "o-1"}))
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, uint64(5), h.Dropped())
}

func TestHubCancelClosesAndUnregisters(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(OrderTopic("o-1"))
	assert.Equal(t, 1, h.Subscribers(OrderTopic("o-1")))

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.Subscribers(OrderTopic("o-1")))
	require.NoError(t, h.Publish(context.Background(), Event{Type: EventOrderStatus, OrderID: "o-1"}))
}

func TestHubRejectsUntypedEvent(t *testing.T) {
	assert.Error(t, NewHub().Publish(context.Background(), Event{OrderID: "o-1"}))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "order-events"}

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventOrderCreated, OrderID: "o-9", Data: map[string]int64{"total": 22000}}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o-9", string(w.msgs[0].Key))
	assert.Equal(t, "type", w.msgs[0].Headers[0].Key)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &body))
	assert.Equal(t, EventOrderCreated, body["type"])
	assert.NotContains(t, body, "Users")
}

func TestMultiPublisherJoinsErrors(t *testing.T) {
	boom := errors.New("broker down")
	h := NewHub()
	ch, cancel := h.Subscribe(OrderTopic("o-1"))
	defer cancel()

	m := MultiPublisher{h, &KafkaPublisher{writer: &fakeWriter{err: boom}}, nil}
	err := m.Publish(context.Background(), Event{Type: EventOrderStatus, OrderID: "o-1"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ch, 1, "hub still delivered")
}
