package handlers

import (
	"strconv"
	"strings"
	"time"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	"quickbite/internal/orderflow"
	applog "quickbite/internal/log"
	"quickbite/internal/services"
	"quickbite/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Orders  *services.OrderService
	Refunds *services.RefundService
	Auth    *services.AuthService
	Coupons *services.CouponService
	Ads     *services.AdService
}

// consoleFail renders the error page with the localized message for err.
func consoleFail(c *fiber.Ctx, action string, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		applog.Error(c, action+".fail", err, nil)
	} else {
		applog.Info(c, action+".rejected", map[string]any{"err": err.Error()})
	}
	return c.Status(apperr.Status(kind)).Render("notfound", fiber.Map{
		"Message": apperr.Message(kind, lang(c)),
	}, "layout")
}

type statusCount struct {
	Status domain.OrderStatus
	Label  string
	N      int
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	counts, err := h.Orders.StatusCounts(c.UserContext())
	if err != nil {
		return consoleFail(c, "admin.dashboard", err)
	}
	pending, err := h.Refunds.PendingCount(c.UserContext())
	if err != nil {
		return consoleFail(c, "admin.dashboard", err)
	}
	l := lang(c)
	rows := make([]statusCount, 0, len(orderflow.Sequence))
	for _, st := range orderflow.Sequence {
		rows = append(rows, statusCount{Status: st, Label: orderflow.Label(st, l), N: counts[st]})
	}
	return render(c, "admin_dashboard", fiber.Map{"Counts": rows, "PendingRefunds": pending})
}

// GET /admin/orders?status=
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	status := domain.OrderStatus(strings.TrimSpace(c.Query("status")))
	ords, err := h.Orders.ListLatest(c.UserContext(), 100, status)
	if err != nil {
		return consoleFail(c, "admin.orders.list", err)
	}
	return render(c, "admin_orders", fiber.Map{
		"Orders":   orderRows(ords, lang(c)),
		"Statuses": orderflow.Sequence,
		"Filter":   status,
	})
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	status := domain.OrderStatus(strings.TrimSpace(c.FormValue("status")))
	if !ok || status == "" {
		applog.Security(c, "validation.fail", map[string]any{"field": "id,status"})
		return consoleFail(c, "admin.orders.update", apperr.ErrInvalid)
	}
	if _, err := h.Orders.Transition(c.UserContext(), currentUser(c), id, status, c.FormValue("note")); err != nil {
		return consoleFail(c, "admin.orders.update", err)
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": status})
	return c.Redirect("/admin/orders")
}

// POST /admin/orders/:id/cancel
func (h *AdminHandler) CancelOrder(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return consoleFail(c, "admin.orders.cancel", apperr.ErrNotFound)
	}
	cx, err := h.Orders.Cancel(c.UserContext(), currentUser(c), id, c.FormValue("reason"))
	if err != nil {
		return consoleFail(c, "admin.orders.cancel", err)
	}
	applog.Audit(c, "admin.orders.cancel", map[string]any{"order_id": id, "refund": cx.RefundAmount})
	return c.Redirect("/admin/orders")
}

// GET /admin/refunds?all=1
func (h *AdminHandler) RefundsPage(c *fiber.Ctx) error {
	pendingOnly := !c.QueryBool("all", false)
	rows, err := h.Refunds.List(c.UserContext(), pendingOnly)
	if err != nil {
		return consoleFail(c, "admin.refunds.list", err)
	}
	return render(c, "admin_refunds", fiber.Map{"Refunds": rows, "PendingOnly": pendingOnly})
}

// POST /admin/refunds/:id/complete
func (h *AdminHandler) CompleteRefund(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return consoleFail(c, "admin.refunds.complete", apperr.ErrNotFound)
	}
	if err := h.Refunds.Complete(c.UserContext(), currentUser(c), id); err != nil {
		return consoleFail(c, "admin.refunds.complete", err)
	}
	applog.Audit(c, "admin.refunds.complete", map[string]any{"refund_id": id})
	return c.Redirect("/admin/refunds")
}

// GET /admin/users?role=
func (h *AdminHandler) UsersPage(c *fiber.Ctx) error {
	role := domain.Role(strings.TrimSpace(c.Query("role")))
	users, err := h.Auth.ListUsers(c.UserContext(), role)
	if err != nil {
		return consoleFail(c, "admin.users.list", err)
	}
	return render(c, "admin_users", fiber.Map{"Users": users, "Role": role})
}

// GET /admin/coupons
func (h *AdminHandler) CouponsPage(c *fiber.Ctx) error {
	list, err := h.Coupons.List(c.UserContext())
	if err != nil {
		return consoleFail(c, "admin.coupons.list", err)
	}
	return render(c, "admin_coupons", fiber.Map{"Coupons": list})
}

func formInt(c *fiber.Ctx, key string) (int64, bool) {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil && n >= 0
}

// formDate reads a yyyy-mm-dd field; endOfDay moves it to the last second.
func formDate(c *fiber.Ctx, key string, endOfDay bool) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(c.FormValue(key)))
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, true
}

// POST /admin/coupons
func (h *AdminHandler) CreateCoupon(c *fiber.Ctx) error {
	value, okV := formInt(c, "value")
	minOrder, okM := formInt(c, "min_order")
	maxDisc, okD := formInt(c, "max_discount")
	limit, okL := formInt(c, "usage_limit")
	expires, okE := formDate(c, "expires_at", true)
	code, okC := validate.CouponCode(c.FormValue("code"))
	if !okV || !okM || !okD || !okL || !okE || !okC {
		applog.Security(c, "validation.fail", map[string]any{"form": "coupon"})
		return consoleFail(c, "admin.coupons.create", apperr.ErrInvalid)
	}
	cp, err := h.Coupons.Create(c.UserContext(), services.CouponInput{
		Code:        code,
		Kind:        domain.CouponKind(c.FormValue("kind")),
		Value:       value,
		MinOrder:    minOrder,
		MaxDiscount: maxDisc,
		UsageLimit:  int(limit),
		ExpiresAt:   expires,
	})
	if err != nil {
		return consoleFail(c, "admin.coupons.create", err)
	}
	applog.Audit(c, "admin.coupons.create", map[string]any{"code": cp.Code, "kind": cp.Kind, "value": cp.Value})
	return c.Redirect("/admin/coupons")
}

// POST /admin/coupons/:code/deactivate
func (h *AdminHandler) DeactivateCoupon(c *fiber.Ctx) error {
	code := c.Params("code")
	if err := h.Coupons.Deactivate(c.UserContext(), code); err != nil {
		return consoleFail(c, "admin.coupons.deactivate", err)
	}
	applog.Audit(c, "admin.coupons.deactivate", map[string]any{"code": code})
	return c.Redirect("/admin/coupons")
}

// GET /admin/ads
func (h *AdminHandler) AdsPage(c *fiber.Ctx) error {
	list, err := h.Ads.List(c.UserContext())
	if err != nil {
		return consoleFail(c, "admin.ads.list", err)
	}
	return render(c, "admin_ads", fiber.Map{"Ads": list})
}

// POST /admin/ads
func (h *AdminHandler) CreateAd(c *fiber.Ctx) error {
	starts, okS := formDate(c, "starts_at", false)
	ends, okE := formDate(c, "ends_at", true)
	sort, okO := formInt(c, "sort_order")
	if !okS || !okE || !okO {
		applog.Security(c, "validation.fail", map[string]any{"form": "ad"})
		return consoleFail(c, "admin.ads.create", apperr.ErrInvalid)
	}
	in := services.AdInput{
		Title:     c.FormValue("title"),
		ImageURL:  c.FormValue("image_url"),
		LinkURL:   c.FormValue("link_url"),
		StartsAt:  starts,
		EndsAt:    ends,
		SortOrder: int(sort),
	}
	if fields := validate.Struct(in); fields != nil {
		applog.Security(c, "validation.fail", map[string]any{"form": "ad", "fields": fields})
		return consoleFail(c, "admin.ads.create", apperr.ErrInvalid)
	}
	a, err := h.Ads.Create(c.UserContext(), in)
	if err != nil {
		return consoleFail(c, "admin.ads.create", err)
	}
	applog.Audit(c, "admin.ads.create", map[string]any{"ad_id": a.ID})
	return c.Redirect("/admin/ads")
}

// POST /admin/ads/:id/active
func (h *AdminHandler) SetAdActive(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return consoleFail(c, "admin.ads.toggle", apperr.ErrNotFound)
	}
	active := c.FormValue("active") == "1"
	if err := h.Ads.SetActive(c.UserContext(), id, active); err != nil {
		return consoleFail(c, "admin.ads.toggle", err)
	}
	applog.Audit(c, "admin.ads.toggle", map[string]any{"ad_id": id, "active": active})
	return c.Redirect("/admin/ads")
}
