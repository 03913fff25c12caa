package handlers

import (
	"slices"
	"strings"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	applog "quickbite/internal/log"
	"quickbite/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Authenticate attaches the caller to the context when a bearer token or a
// bound sid cookie identifies one. It never rejects; the Require*
// middlewares do.
func Authenticate(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var u *domain.User
		if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
			var err error
			u, err = auth.UserFromToken(c.UserContext(), strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
			if err != nil {
				applog.Security(c, "auth.token.reject", map[string]any{"err": err.Error()})
				u = nil
			}
		} else if sid := c.Cookies("sid"); sid != "" {
			u, _ = auth.CurrentUser(c.UserContext(), sid)
		}
		if u != nil {
			c.Locals("user", u)
			c.Locals("user_id", u.ID)
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// RequireUser rejects anonymous API calls with 401.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) == nil {
			return fail(c, "auth.required", apperr.ErrUnauthorized)
		}
		return c.Next()
	}
}

// RequireRole lets through callers holding one of roles. Admins always pass.
func RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := currentUser(c)
		if u == nil {
			return fail(c, "auth.required", apperr.ErrUnauthorized)
		}
		if !u.IsAdmin() && !slices.Contains(roles, u.Role) {
			applog.Security(c, "access.denied.role", map[string]any{"role": u.Role, "need": roles})
			return fail(c, "auth.role", apperr.ErrForbidden)
		}
		return c.Next()
	}
}

// RequireAdmin guards the console: anonymous visitors go to the login form,
// signed-in non-admins get a 403 page.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := currentUser(c)
		if u == nil {
			return c.Redirect("/login")
		}
		if !u.IsAdmin() {
			applog.Security(c, "access.denied.admin", map[string]any{"role": u.Role})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{
				"Message": apperr.Message(apperr.Forbidden, lang(c)),
			})
		}
		return c.Next()
	}
}
