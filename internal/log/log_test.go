package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Level    string         `json:"level"`
	Action   string         `json:"action"`
	Category string         `json:"category"`
	ReqID    string         `json:"req_id"`
	UserID   string         `json:"user_id"`
	Path     string         `json:"path"`
	Err      string         `json:"err"`
	Fields   map[string]any `json:"fields"`
}

func capture(t *testing.T, fn func()) []line {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nopWriter{}) })
	fn()

	var out []line
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var l line
		require.NoError(t, json.Unmarshal([]byte(raw), &l))
		out = append(out, l)
	}
	return out
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRequestScopedLines(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/x", func(c *fiber.Ctx) error {
		c.Locals("user_id", "u-1")
		Audit(c, "order.place", map[string]any{"order_id": "o-1"})
		Security(c, "access.denied.order", nil)
		Error(c, "db.fail", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusOK)
	})

	lines := capture(t, func() {
		_, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		require.NoError(t, err)
	})
	require.Len(t, lines, 3)

	assert.Equal(t, "info", lines[0].Level)
	assert.Equal(t, "order.place", lines[0].Action)
	assert.Equal(t, "audit", lines[0].Category)
	assert.Equal(t, "u-1", lines[0].UserID)
	assert.Equal(t, "/x", lines[0].Path)
	assert.NotEmpty(t, lines[0].ReqID)
	assert.Equal(t, "o-1", lines[0].Fields["order_id"])

	assert.Equal(t, "warn", lines[1].Level)
	assert.Equal(t, "security", lines[1].Category)

	assert.Equal(t, "error", lines[2].Level)
	assert.Equal(t, "boom", lines[2].Err)
}

func TestLevelFilter(t *testing.T) {
	SetLevel("warn")
	t.Cleanup(func() { SetLevel("info") })

	lines := capture(t, func() {
		Info(nil, "hidden", nil)
		Security(nil, "shown", nil)
	})
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0].Action)
}
