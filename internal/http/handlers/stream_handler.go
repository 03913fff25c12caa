package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	applog "quickbite/internal/log"
	"quickbite/internal/realtime"
	"quickbite/internal/services"
)

const heartbeatEvery = 25 * time.Second

type StreamHandler struct {
	Orders *services.OrderService
	Hub    *realtime.Hub
	// Heartbeat overrides heartbeatEvery when set.
	Heartbeat time.Duration
}

// GET /api/v1/orders/:id/stream sends the order's events as Server-Sent
// Events, starting with a snapshot of the order.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "orders.stream", apperr.ErrNotFound)
	}
	viewer := currentUser(c)
	o, err := h.Orders.Get(c.UserContext(), viewer, id)
	if err != nil {
		return fail(c, "orders.stream", err)
	}

	every := h.Heartbeat
	if every <= 0 {
		every = heartbeatEvery
	}
	applog.Info(c, "orders.stream.open", map[string]any{"order": o.ID})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		h.serve(w, viewer, o, every)
	}))
	return nil
}

// serve runs one client's stream. The subscription exists only while the
// body is being written, and the snapshot is read after subscribing so no
// change falls in between.
func (h *StreamHandler) serve(w *bufio.Writer, viewer *domain.User, o *domain.Order, every time.Duration) {
	events, cancel := h.Hub.Subscribe(realtime.OrderTopic(o.ID))
	defer cancel()
	snap := o
	if fresh, err := h.Orders.Get(context.Background(), viewer, o.ID); err == nil {
		snap = fresh
	}
	snapshot := realtime.Event{Type: "order.snapshot", OrderID: o.ID, Data: snap, At: time.Now().UTC().Format(time.RFC3339)}
	if err := writeEvent(w, snapshot); err != nil {
		return
	}
	n := streamEvents(w, events, every)
	applog.L().Debug("order stream closed", zap.String("order_id", o.ID), zap.Int("sent", n))
}

// streamEvents copies events to w until the channel closes or the client
// goes away, writing a comment line whenever every passes in silence.
func streamEvents(w *bufio.Writer, events <-chan realtime.Event, every time.Duration) int {
	tick := time.NewTicker(every)
	defer tick.Stop()
	sent := 0
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return sent
			}
			if err := writeEvent(w, e); err != nil {
				return sent
			}
			sent++
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return sent
			}
			if err := w.Flush(); err != nil {
				return sent
			}
		}
	}
}

func writeEvent(w *bufio.Writer, e realtime.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
