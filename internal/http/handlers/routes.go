package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	applog "quickbite/internal/log"
)

// Limits are requests per window for the throttled routes.
type Limits struct {
	Global       int
	GlobalWindow time.Duration
	Login        int
	LoginWindow  time.Duration
	Geo          int
	GeoWindow    time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		Global: 120, GlobalWindow: time.Minute,
		Login: 5, LoginWindow: 10 * time.Minute,
		Geo: 20, GeoWindow: time.Minute,
	}
}

type AppOptions struct {
	Views        *html.Engine
	Limits       Limits
	CookieSecure bool
	// AccessLog enables the request logger middleware.
	AccessLog bool
}

func tooMany(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		applog.Security(c, action, nil)
		kind := apperr.Kind("rate_limited")
		msg := "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요."
		if lang(c) == "en" {
			msg = "Too many requests. Please try again later."
		}
		if isAPI(c) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": fiber.Map{"code": kind, "message": msg}})
		}
		if c.Path() == "/login" {
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{"Err": msg}, "layout")
		}
		return c.Status(fiber.StatusTooManyRequests).Render("notfound", fiber.Map{"Message": msg}, "layout")
	}
}

// NewApp builds the fiber app with the middleware stack and every route.
func NewApp(d *Deps, opt AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		Views:                 opt.Views,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	app.Use(requestid.New())
	if opt.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(Authenticate(d.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:          opt.Limits.Global,
		Expiration:   opt.Limits.GlobalWindow,
		LimitReached: tooMany("rate.global.hit"),
		Next: func(c *fiber.Ctx) bool {
			// long-lived streams and health checks are not counted
			p := c.Path()
			return p == "/healthz" || strings.HasSuffix(p, "/stream")
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   opt.CookieSecure,
		// The JSON API authenticates per request and is not form driven.
		Next: isAPI,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"err": err.Error()})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{
				"Message": apperr.Message(apperr.Forbidden, lang(c)),
			}, "layout")
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	// Console auth
	app.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/admin") })
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:          opt.Limits.Login,
		Expiration:   opt.Limits.LoginWindow,
		LimitReached: tooMany("rate.login.hit"),
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	admin := app.Group("/admin", RequireAdmin())
	ah := d.AdminHandler
	admin.Get("/", ah.Dashboard)
	admin.Get("/orders", ah.OrdersPage)
	admin.Post("/orders/:id/status", ah.UpdateOrderStatus)
	admin.Post("/orders/:id/cancel", ah.CancelOrder)
	admin.Get("/refunds", ah.RefundsPage)
	admin.Post("/refunds/:id/complete", ah.CompleteRefund)
	admin.Get("/users", ah.UsersPage)
	admin.Get("/coupons", ah.CouponsPage)
	admin.Post("/coupons", ah.CreateCoupon)
	admin.Post("/coupons/:code/deactivate", ah.DeactivateCoupon)
	admin.Get("/ads", ah.AdsPage)
	admin.Post("/ads", ah.CreateAd)
	admin.Post("/ads/:id/active", ah.SetAdActive)

	api := app.Group("/api/v1")
	user := RequireUser()
	owner := RequireRole(domain.RoleOwner)
	rider := RequireRole(domain.RoleRider)
	customer := RequireRole(domain.RoleCustomer)

	api.Post("/auth/register", d.AuthHandler.Register)
	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:          opt.Limits.Login,
		Expiration:   opt.Limits.LoginWindow,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() + "|api-login" },
		LimitReached: tooMany("rate.login.hit"),
	}), d.AuthHandler.APILogin)
	api.Post("/auth/logout", d.AuthHandler.APILogout)
	api.Get("/me", user, d.AuthHandler.Me)

	rh := d.RestaurantHandler
	api.Get("/restaurants", rh.List)
	api.Get("/restaurants/categories", rh.Categories)
	api.Get("/restaurants/:id", rh.Detail)
	api.Get("/owner/restaurants", owner, rh.Mine)
	api.Post("/owner/restaurants", owner, rh.Create)
	api.Patch("/owner/restaurants/:id", owner, rh.Update)
	api.Get("/owner/restaurants/:id/menu", owner, rh.Menu)
	api.Post("/owner/restaurants/:id/menu", owner, rh.AddMenuItem)
	api.Get("/owner/restaurants/:id/orders", owner, rh.Orders)
	api.Patch("/owner/menu/:itemId", owner, rh.UpdateMenuItem)
	api.Delete("/owner/menu/:itemId", owner, rh.DeleteMenuItem)

	oh := d.OrderHandler
	api.Post("/orders", customer, oh.Place)
	api.Get("/orders", customer, oh.List)
	api.Get("/orders/:id", user, oh.Get)
	api.Get("/orders/:id/history", user, oh.History)
	api.Post("/orders/:id/status", user, oh.UpdateStatus)
	api.Get("/orders/:id/cancel-quote", user, oh.CancelQuote)
	api.Post("/orders/:id/cancel", user, oh.Cancel)
	api.Get("/orders/:id/stream", user, d.StreamHandler.Stream)
	api.Get("/orders/:id/messages", user, oh.Messages)
	api.Post("/orders/:id/messages", user, oh.SendMessage)
	api.Get("/rider/orders/available", rider, oh.Available)
	api.Get("/rider/orders", rider, oh.RiderOrders)
	api.Post("/rider/orders/:id/accept", rider, oh.Accept)

	nh := d.NotificationHandler
	api.Get("/notifications", user, nh.List)
	api.Get("/notifications/unread-count", user, nh.UnreadCount)
	api.Post("/notifications/read-all", user, nh.MarkAllRead)
	api.Post("/notifications/:id/read", user, nh.MarkRead)
	api.Post("/push-tokens", user, nh.RegisterPushToken)
	api.Delete("/push-tokens/:token", user, nh.UnregisterPushToken)

	ph := d.PromoHandler
	api.Post("/coupons/validate", user, ph.ValidateCoupon)
	api.Get("/points", user, ph.Points)
	api.Get("/ads", ph.Ads)

	geoLimiter := limiter.New(limiter.Config{
		Max:          opt.Limits.Geo,
		Expiration:   opt.Limits.GeoWindow,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() + "|geo" },
		LimitReached: tooMany("rate.geo.hit"),
	})
	api.Get("/geo/geocode", geoLimiter, d.GeoHandler.Geocode)
	api.Get("/geo/reverse", geoLimiter, d.GeoHandler.Reverse)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(NotFound)
	return app
}
