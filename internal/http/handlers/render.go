package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quickbite/internal/domain"
	"quickbite/internal/orderflow"
)

// render fills in what every console page needs and wraps it in the layout.
func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if u := currentUser(c); u != nil {
		data["User"] = u
	}
	tok, _ := c.Locals("CSRFToken").(string)
	if tok == "" {
		// GET handlers run before the cookie round-trips on a first visit.
		tok = c.Cookies("csrf_")
	}
	if tok != "" {
		data["CSRFToken"] = tok
	}
	if _, ok := data["Err"]; !ok {
		data["Err"] = ""
	}
	data["Lang"] = lang(c)
	return c.Render(tmpl, data, "layout")
}

// orderRow is an order plus what the console shows next to it.
type orderRow struct {
	domain.Order
	Label string
	Next  []domain.OrderStatus
}

func orderRows(list []domain.Order, lang string) []orderRow {
	out := make([]orderRow, 0, len(list))
	for _, o := range list {
		out = append(out, orderRow{
			Order: o,
			Label: orderflow.Label(o.Status, lang),
			Next:  orderflow.Next(o.Status, domain.RoleAdmin),
		})
	}
	return out
}
