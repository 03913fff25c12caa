package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "quickbite/internal/log"
	"quickbite/internal/services"
	"quickbite/internal/validate"
)

// PromoHandler serves coupons, points and ads to the apps.
type PromoHandler struct {
	Coupons   *services.CouponService
	PointsSvc *services.PointsService
	AdSvc     *services.AdService
}

type couponCheckInput struct {
	Code     string `json:"code" validate:"required,max=20"`
	Subtotal int64  `json:"subtotal" validate:"gte=0"`
}

// POST /api/v1/coupons/validate
func (h *PromoHandler) ValidateCoupon(c *fiber.Ctx) error {
	var in couponCheckInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	code, ok := validate.CouponCode(in.Code)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "code"})
		return failFields(c, map[string]string{"code": "format"})
	}
	chk, err := h.Coupons.Validate(c.UserContext(), code, in.Subtotal)
	if err != nil {
		return fail(c, "coupons.validate", err)
	}
	return c.JSON(chk)
}

// GET /api/v1/points
func (h *PromoHandler) Points(c *fiber.Ctx) error {
	sum, err := h.PointsSvc.Summary(c.UserContext(), currentUser(c), queryInt(c, "limit", 50, 200))
	if err != nil {
		return fail(c, "points.summary", err)
	}
	return c.JSON(sum)
}

// GET /api/v1/ads
func (h *PromoHandler) Ads(c *fiber.Ctx) error {
	ads, err := h.AdSvc.Live(c.UserContext())
	if err != nil {
		return fail(c, "ads.live", err)
	}
	return c.JSON(fiber.Map{"ads": ads})
}
