package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"quickbite/internal/apperr"
	applog "quickbite/internal/log"
	"quickbite/internal/validate"
)

func lang(c *fiber.Ctx) string { return apperr.Lang(c.Get(fiber.HeaderAcceptLanguage)) }

// fail maps err onto its status code and the localized message for the
// request's language. Only server errors are logged with their cause.
func fail(c *fiber.Ctx, action string, err error) error {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.Internal:
		applog.Error(c, action+".fail", err, nil)
	case apperr.Forbidden, apperr.Unauthorized:
		applog.Security(c, action+".denied", map[string]any{"err": err.Error()})
	}
	return c.Status(apperr.Status(kind)).JSON(fiber.Map{
		"error": fiber.Map{"code": kind, "message": apperr.Message(kind, lang(c))},
	})
}

func failFields(c *fiber.Ctx, fields map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  fiber.Map{"code": apperr.Invalid, "message": apperr.Message(apperr.Invalid, lang(c))},
		"fields": fields,
	})
}

// bind parses a JSON body into dst and runs its validate tags. When ok is
// false the 400 has been written and the handler must return err as is.
func bind(c *fiber.Ctx, dst any) (ok bool, err error) {
	if perr := c.BodyParser(dst); perr != nil {
		return false, failFields(c, map[string]string{"_": "body"})
	}
	if fields := validate.Struct(dst); fields != nil {
		return false, failFields(c, fields)
	}
	return true, nil
}

func pathID(c *fiber.Ctx, name string) (string, bool) {
	return validate.ID(c.Params(name))
}

func queryInt(c *fiber.Ctx, key string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// isAPI reports whether the request is for the JSON API rather than the console.
func isAPI(c *fiber.Ctx) bool { return strings.HasPrefix(c.Path(), "/api/") }

// ErrorHandler is the app-wide fallback. Internal details are logged, never
// sent to the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	kind := apperr.Internal
	switch code {
	case fiber.StatusNotFound:
		kind = apperr.NotFound
	case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest:
		kind = apperr.Invalid
	case fiber.StatusMethodNotAllowed:
		kind = apperr.NotFound
		code = fiber.StatusNotFound
	default:
		code = fiber.StatusInternalServerError
		applog.Error(c, "server.error", err, nil)
	}
	msg := apperr.Message(kind, lang(c))
	if isAPI(c) {
		return c.Status(code).JSON(fiber.Map{"error": fiber.Map{"code": kind, "message": msg}})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

// NotFound is the last handler in the chain.
func NotFound(c *fiber.Ctx) error {
	return ErrorHandler(c, fiber.ErrNotFound)
}
