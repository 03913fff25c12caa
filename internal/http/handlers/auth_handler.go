package handlers

import (
	"time"

	"quickbite/internal/apperr"
	"quickbite/internal/log"
	"quickbite/internal/services"
	"quickbite/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Auth         *services.AuthService
	CookieSecure bool
}

func (h *AuthHandler) setSID(c *fiber.Ctx, sid string) {
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
	})
}

func (h *AuthHandler) expireSID(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": ""})
}

func (h *AuthHandler) loginFailed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).Render("login", fiber.Map{
		"Err":       apperr.Message(apperr.Unauthorized, lang(c)),
		"CSRFToken": c.Cookies("csrf_"),
	}, "layout")
}

// Login handles the console form. Admins land on the dashboard.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	email := c.FormValue("email")
	pass := c.FormValue("password")
	if _, ok := validate.Email(email); !ok {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_format"})
		return h.loginFailed(c)
	}
	sess, err := h.Auth.Login(c.UserContext(), c.Cookies("sid"), email, pass)
	if err != nil {
		log.Security(c, "auth.login.fail", map[string]any{"email": email})
		return h.loginFailed(c)
	}
	h.setSID(c, sess.SID)
	c.Locals("user_id", sess.User.ID)
	log.Audit(c, "auth.login.success", map[string]any{"email": sess.User.Email, "role": sess.User.Role})
	if sess.User.IsAdmin() {
		return c.Redirect("/admin")
	}
	return c.Redirect("/")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if sid := c.Cookies("sid"); sid != "" {
		_ = h.Auth.Logout(c.UserContext(), sid)
	}
	h.expireSID(c)
	log.Audit(c, "auth.logout", nil)
	return c.Redirect("/login")
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	u, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		return fail(c, "auth.register", err)
	}
	log.Audit(c, "auth.register", map[string]any{"user": u.ID, "role": u.Role})
	return c.Status(fiber.StatusCreated).JSON(u)
}

type apiLogin struct {
	Email    string `json:"email" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=64"`
}

// POST /api/v1/auth/login returns an access token and also binds the sid
// cookie, so browser clients may use either.
func (h *AuthHandler) APILogin(c *fiber.Ctx) error {
	var in apiLogin
	if ok, err := bind(c, &in); !ok {
		return err
	}
	sess, err := h.Auth.Login(c.UserContext(), c.Cookies("sid"), in.Email, in.Password)
	if err != nil {
		log.Security(c, "auth.login.fail", map[string]any{"email": in.Email, "api": true})
		return fail(c, "auth.login", err)
	}
	h.setSID(c, sess.SID)
	c.Locals("user_id", sess.User.ID)
	log.Audit(c, "auth.login.success", map[string]any{"email": sess.User.Email, "api": true})
	return c.JSON(sess)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) APILogout(c *fiber.Ctx) error {
	if sid := c.Cookies("sid"); sid != "" {
		if err := h.Auth.Logout(c.UserContext(), sid); err != nil {
			return fail(c, "auth.logout", err)
		}
	}
	h.expireSID(c)
	log.Audit(c, "auth.logout", map[string]any{"api": true})
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/v1/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u := currentUser(c)
	if u == nil {
		return fail(c, "auth.me", apperr.ErrUnauthorized)
	}
	return c.JSON(u)
}
