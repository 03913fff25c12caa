package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quickbite/internal/apperr"
	applog "quickbite/internal/log"
	"quickbite/internal/services"
)

type NotificationHandler struct {
	Notify *services.NotificationService
}

// GET /api/v1/notifications?limit=
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	list, err := h.Notify.List(c.UserContext(), currentUser(c), queryInt(c, "limit", 30, 100))
	if err != nil {
		return fail(c, "notifications.list", err)
	}
	return c.JSON(fiber.Map{"notifications": list})
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	n, err := h.Notify.UnreadCount(c.UserContext(), currentUser(c))
	if err != nil {
		return fail(c, "notifications.unread", err)
	}
	return c.JSON(fiber.Map{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "notifications.read", apperr.ErrNotFound)
	}
	if err := h.Notify.MarkRead(c.UserContext(), currentUser(c), id); err != nil {
		return fail(c, "notifications.read", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	n, err := h.Notify.MarkAllRead(c.UserContext(), currentUser(c))
	if err != nil {
		return fail(c, "notifications.read_all", err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

// POST /api/v1/push-tokens
func (h *NotificationHandler) RegisterPushToken(c *fiber.Ctx) error {
	var in services.PushTokenInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	t, err := h.Notify.RegisterPushToken(c.UserContext(), currentUser(c), in)
	if err != nil {
		return fail(c, "push_tokens.register", err)
	}
	applog.Audit(c, "push_tokens.register", map[string]any{"platform": t.Platform})
	return c.Status(fiber.StatusCreated).JSON(t)
}

// DELETE /api/v1/push-tokens/:token
func (h *NotificationHandler) UnregisterPushToken(c *fiber.Ctx) error {
	tok := c.Params("token")
	if tok == "" || len(tok) > 512 {
		return fail(c, "push_tokens.unregister", apperr.ErrNotFound)
	}
	if err := h.Notify.UnregisterPushToken(c.UserContext(), currentUser(c), tok); err != nil {
		return fail(c, "push_tokens.unregister", err)
	}
	applog.Audit(c, "push_tokens.unregister", nil)
	return c.SendStatus(fiber.StatusNoContent)
}
