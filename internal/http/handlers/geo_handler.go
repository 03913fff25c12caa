package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"quickbite/internal/geo"
	"quickbite/internal/log"
	"quickbite/internal/validate"
)

type GeoHandler struct {
	Geo *geo.Client
}

// GET /api/v1/geo/geocode?q=
func (h *GeoHandler) Geocode(c *fiber.Ctx) error {
	raw := c.Query("q")
	q, ok := validate.Q(raw)
	if !ok {
		if strings.TrimSpace(raw) != "" {
			log.Security(c, "validation.fail", map[string]any{"field": "q", "value": raw})
		}
		return failFields(c, map[string]string{"q": "format"})
	}
	places, err := h.Geo.Geocode(c.UserContext(), q)
	if err != nil {
		return fail(c, "geo.geocode", err)
	}
	return c.JSON(fiber.Map{"places": places})
}

// GET /api/v1/geo/reverse?lat=&lng=
func (h *GeoHandler) Reverse(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil || !validate.Coord(lat, lng) {
		log.Security(c, "validation.fail", map[string]any{"field": "lat,lng"})
		return failFields(c, map[string]string{"lat,lng": "range"})
	}
	p, err := h.Geo.Reverse(c.UserContext(), lat, lng)
	if err != nil {
		return fail(c, "geo.reverse", err)
	}
	return c.JSON(p)
}
