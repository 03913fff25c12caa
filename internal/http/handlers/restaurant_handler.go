package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	applog "quickbite/internal/log"
	"quickbite/internal/services"
	"quickbite/internal/validate"
)

type RestaurantHandler struct {
	Restaurants *services.RestaurantService
	OrderSvc    *services.OrderService
}

// GET /api/v1/restaurants?category=&open=1&lat=&lng=&radius_km=
func (h *RestaurantHandler) List(c *fiber.Ctx) error {
	q := services.RestaurantQuery{OpenOnly: c.QueryBool("open", false)}
	if cat := strings.TrimSpace(c.Query("category")); cat != "" {
		cat, ok := validate.Q(cat)
		if !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "category"})
			return failFields(c, map[string]string{"category": "format"})
		}
		q.Category = cat
	}
	if c.Query("radius_km") != "" {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		radius, errR := strconv.ParseFloat(c.Query("radius_km"), 64)
		if errLat != nil || errLng != nil || errR != nil || radius <= 0 || radius > 50 || !validate.Coord(lat, lng) {
			return failFields(c, map[string]string{"lat,lng,radius_km": "range"})
		}
		q.Lat, q.Lng, q.RadiusKm = lat, lng, radius
	}
	list, err := h.Restaurants.List(c.UserContext(), q)
	if err != nil {
		return fail(c, "restaurants.list", err)
	}
	return c.JSON(fiber.Map{"restaurants": list})
}

// GET /api/v1/restaurants/categories
func (h *RestaurantHandler) Categories(c *fiber.Ctx) error {
	cats, err := h.Restaurants.Categories(c.UserContext())
	if err != nil {
		return fail(c, "restaurants.categories", err)
	}
	return c.JSON(fiber.Map{"categories": cats})
}

// GET /api/v1/restaurants/:id
func (h *RestaurantHandler) Detail(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "restaurants.detail", apperr.ErrNotFound)
	}
	d, err := h.Restaurants.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, "restaurants.detail", err)
	}
	return c.JSON(d)
}

// GET /api/v1/owner/restaurants
func (h *RestaurantHandler) Mine(c *fiber.Ctx) error {
	list, err := h.Restaurants.Mine(c.UserContext(), currentUser(c))
	if err != nil {
		return fail(c, "owner.restaurants.list", err)
	}
	return c.JSON(fiber.Map{"restaurants": list})
}

// POST /api/v1/owner/restaurants
func (h *RestaurantHandler) Create(c *fiber.Ctx) error {
	var in services.RestaurantInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	r, err := h.Restaurants.Create(c.UserContext(), currentUser(c), in)
	if err != nil {
		return fail(c, "owner.restaurants.create", err)
	}
	applog.Audit(c, "owner.restaurants.create", map[string]any{"restaurant": r.ID})
	return c.Status(fiber.StatusCreated).JSON(r)
}

// PATCH /api/v1/owner/restaurants/:id
func (h *RestaurantHandler) Update(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "owner.restaurants.update", apperr.ErrNotFound)
	}
	var in services.RestaurantInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	r, err := h.Restaurants.Update(c.UserContext(), currentUser(c), id, in)
	if err != nil {
		return fail(c, "owner.restaurants.update", err)
	}
	applog.Audit(c, "owner.restaurants.update", map[string]any{"restaurant": id, "open": r.IsOpen})
	return c.JSON(r)
}

// GET /api/v1/owner/restaurants/:id/menu lists every item, unavailable ones too.
func (h *RestaurantHandler) Menu(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "owner.menu.list", apperr.ErrNotFound)
	}
	items, err := h.Restaurants.FullMenu(c.UserContext(), currentUser(c), id)
	if err != nil {
		return fail(c, "owner.menu.list", err)
	}
	return c.JSON(fiber.Map{"menu": items})
}

// POST /api/v1/owner/restaurants/:id/menu
func (h *RestaurantHandler) AddMenuItem(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "owner.menu.add", apperr.ErrNotFound)
	}
	var in services.MenuItemInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	m, err := h.Restaurants.AddMenuItem(c.UserContext(), currentUser(c), id, in)
	if err != nil {
		return fail(c, "owner.menu.add", err)
	}
	applog.Audit(c, "owner.menu.add", map[string]any{"restaurant": id, "item": m.ID})
	return c.Status(fiber.StatusCreated).JSON(m)
}

// PATCH /api/v1/owner/menu/:itemId
func (h *RestaurantHandler) UpdateMenuItem(c *fiber.Ctx) error {
	id, ok := pathID(c, "itemId")
	if !ok {
		return fail(c, "owner.menu.update", apperr.ErrNotFound)
	}
	var in services.MenuItemInput
	if ok, err := bind(c, &in); !ok {
		return err
	}
	m, err := h.Restaurants.UpdateMenuItem(c.UserContext(), currentUser(c), id, in)
	if err != nil {
		return fail(c, "owner.menu.update", err)
	}
	applog.Audit(c, "owner.menu.update", map[string]any{"item": id, "available": m.Available})
	return c.JSON(m)
}

// DELETE /api/v1/owner/menu/:itemId
func (h *RestaurantHandler) DeleteMenuItem(c *fiber.Ctx) error {
	id, ok := pathID(c, "itemId")
	if !ok {
		return fail(c, "owner.menu.delete", apperr.ErrNotFound)
	}
	if err := h.Restaurants.DeleteMenuItem(c.UserContext(), currentUser(c), id); err != nil {
		return fail(c, "owner.menu.delete", err)
	}
	applog.Audit(c, "owner.menu.delete", map[string]any{"item": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/v1/owner/restaurants/:id/orders?status=
func (h *RestaurantHandler) Orders(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, "owner.orders.list", apperr.ErrNotFound)
	}
	status := domain.OrderStatus(strings.TrimSpace(c.Query("status")))
	list, err := h.OrderSvc.ListForRestaurant(c.UserContext(), currentUser(c), id, status)
	if err != nil {
		return fail(c, "owner.orders.list", err)
	}
	return c.JSON(fiber.Map{"orders": list})
}
