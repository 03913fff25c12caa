package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	applog "quickbite/internal/log"
	"quickbite/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
	Chat   *services.ChatService
}

// POST /api/v1/orders
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var in services.PlaceOrder
	if ok, err := bind(c, &in); !ok {
		return err
	}
	o, err := h.Orders.Place(c.UserContext(), currentUser(c), in)
	if err != nil {
		return fail(c, "orders.place", err)
	}
	applog.Audit(c, "orders.place", map[string]any{
		"order": o.ID, "restaurant": o.RestaurantID, "total": o.Total, "coupon": o.CouponCode, "points": o.PointsUsed,
	})
	return c.Status(fiber.StatusCreated).JSON(o)
}

// GET /api/v1/orders lists the caller's own orders; admins see the latest of all.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	u := currentUser(c)
	limit := queryInt(c, "limit", 50, 100)
	var (
		list []domain.Order
		err  error
	)
	if u.IsAdmin() {
		list, err = h.Orders.ListLatest(c.UserContext(), limit, domain.OrderStatus(c.Query("status")))
	} else {
		list, err = h.Orders.ListForCustomer(c.UserContext(), u, limit)
	}
	if err != nil {
		return fail(c, "orders.list", err)
	}
	return c.JSON(fiber.Map{"orders": list})
}

// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "orders.get", apperr.ErrNotFound)
	}
	d, err := h.Orders.Detail(c.UserContext(), currentUser(c), id)
	if err != nil {
		return fail(c, "orders.get", err)
	}
	return c.JSON(d)
}

// GET /api/v1/orders/:id/history
func (h *OrderHandler) History(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "orders.history", apperr.ErrNotFound)
	}
	hist, err := h.Orders.History(c.UserContext(), currentUser(c), id)
	if err != nil {
		return fail(c, "orders.history", err)
	}
	return c.JSON(fiber.Map{"history": hist})
}

type statusInput struct {
	Status domain.OrderStatus `json:"status" validate:"required,max=20"`
	Note   string             `json:"note" validate:"max=300"`
}

// POST /api/v1/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "orders.status", apperr.ErrNotFound)
	}
	var in statusInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	u := currentUser(c)
	// A move to cancelled takes the note as the reason.
	o, err := h.Orders.Transition(c.UserContext(), u, id, in.Status, in.Note)
	if err != nil {
		return fail(c, "orders.status", err)
	}
	applog.Audit(c, "orders.status", map[string]any{"order": id, "to": in.Status, "role": u.Role})
	return c.JSON(o)
}

// GET /api/v1/orders/:id/cancel-quote
func (h *OrderHandler) CancelQuote(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "orders.cancel_quote", apperr.ErrNotFound)
	}
	q, err := h.Orders.CancelQuote(c.UserContext(), currentUser(c), id)
	if err != nil {
		return fail(c, "orders.cancel_quote", err)
	}
	return c.JSON(q)
}

type cancelInput struct {
	Reason string `json:"reason" validate:"required,max=1200"`
}

// POST /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "orders.cancel", apperr.ErrNotFound)
	}
	var in cancelInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	cx, err := h.Orders.Cancel(c.UserContext(), currentUser(c), id, in.Reason)
	if err != nil {
		return fail(c, "orders.cancel", err)
	}
	applog.Audit(c, "orders.cancel", map[string]any{
		"order": id, "refund": cx.RefundAmount, "fee": cx.Fee, "status_at_cancel": cx.StatusAtCancel,
	})
	return c.JSON(cx)
}

// GET /api/v1/orders/:id/messages
func (h *OrderHandler) Messages(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "chat.list", apperr.ErrNotFound)
	}
	msgs, err := h.Chat.Messages(c.UserContext(), currentUser(c), id, queryInt(c, "limit", 100, 500))
	if err != nil {
		return fail(c, "chat.list", err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

type messageInput struct {
	Body string `json:"body" validate:"required"`
}

// POST /api/v1/orders/:id/messages
func (h *OrderHandler) SendMessage(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "chat.send", apperr.ErrNotFound)
	}
	var in messageInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	m, err := h.Chat.Send(c.UserContext(), currentUser(c), id, in.Body)
	if err != nil {
		return fail(c, "chat.send", err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// GET /api/v1/rider/orders/available
func (h *OrderHandler) Available(c *fiber.Ctx) error {
	list, err := h.Orders.ListAvailableForRiders(c.UserContext())
	if err != nil {
		return fail(c, "rider.available", err)
	}
	return c.JSON(fiber.Map{"orders": list})
}

// GET /api/v1/rider/orders
func (h *OrderHandler) RiderOrders(c *fiber.Ctx) error {
	list, err := h.Orders.ListForRider(c.UserContext(), currentUser(c))
	if err != nil {
		return fail(c, "rider.orders", err)
	}
	return c.JSON(fiber.Map{"orders": list})
}

// POST /api/v1/rider/orders/:id/accept
func (h *OrderHandler) Accept(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "rider.accept", apperr.ErrNotFound)
	}
	o, err := h.Orders.AcceptDelivery(c.UserContext(), currentUser(c), id)
	if err != nil {
		return fail(c, "rider.accept", err)
	}
	applog.Audit(c, "rider.accept", map[string]any{"order": id})
	return c.JSON(o)
}
