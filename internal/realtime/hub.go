// Package realtime fans order and chat events out to live subscribers and,
// when configured, mirrors them onto a Kafka topic.
package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderStatus    = "order.status"
	EventOrderCancelled = "order.cancelled"
	EventRiderAssigned  = "order.rider_assigned"
	EventChatMessage    = "chat.message"
	EventNotification   = "notification"
)

type Event struct {
	Type    string   `json:"type"`
	OrderID string   `json:"order_id,omitempty"`
	Users   []string `json:"-"`
	Data    any      `json:"data,omitempty"`
	At      string   `json:"at"`
}

// Topics lists the channels e is delivered on.
func (e Event) Topics() []string {
	var out []string
	if e.OrderID != "" {
		out = append(out, OrderTopic(e.OrderID))
	}
	for _, u := range e.Users {
		out = append(out, UserTopic(u))
	}
	return out
}

func OrderTopic(id string) string { return "order:" + id }
func UserTopic(id string) string  { return "user:" + id }

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

const subscriberBuffer = 16

type subscriber struct {
	ch chan Event
}

// Hub is an in-process pub/sub keyed by topic. A subscriber whose buffer is
// full misses events; Publish never blocks.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscriber]struct{}
	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[*subscriber]struct{}{}}
}

// Subscribe returns a channel of events for topic and a cancel func that
// must be called to release it. The channel is closed on cancel.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = map[*subscriber]struct{}{}
	}
	h.subs[topic][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[topic], s)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			close(s.ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	if e.Type == "" {
		return errors.New("realtime: event without type")
	}
	if e.At == "" {
		e.At = time.Now().UTC().Format(time.RFC3339)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, t := range e.Topics() {
		for s := range h.subs[t] {
			select {
			case s.ch <- e:
			default:
				h.dropped.Add(1)
			}
		}
	}
	return nil
}

// Dropped counts deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Subscribers reports how many live subscriptions topic has.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// MultiPublisher publishes to every inner publisher and joins the errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
