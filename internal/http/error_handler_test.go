package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/http/handlers"
	"quickbite/web"
)

func TestErrorHandlerHidesInternals(t *testing.T) {
	app := fiber.New(fiber.Config{Views: web.Engine(), ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())
	app.Get("/err", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusInternalServerError, "db timeout: secret trace")
	})
	app.Get("/api/v1/err", func(c *fiber.Ctx) error {
		return io.ErrUnexpectedEOF
	})

	var resp *http.Response
	logs := captureLogs(t, func() {
		var err error
		resp, err = app.Test(httptest.NewRequest("GET", "/err", nil), -1)
		require.NoError(t, err)
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "서버 오류가 발생했습니다")
	assert.NotContains(t, string(body), "db timeout")
	assert.NotContains(t, string(body), "secret")
	if e := findLog(logs, "server.error"); assert.NotNil(t, e) {
		assert.Contains(t, e.Err, "db timeout", "the cause is logged, not shown")
	}

	req := httptest.NewRequest("GET", "/api/v1/err", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var out map[string]map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "server_error", out["error"]["code"])
	assert.Equal(t, "Something went wrong. Please try again.", out["error"]["message"])
}

func TestUnknownRoutes(t *testing.T) {
	app := newApp(t)

	resp, body := app.api(t, "GET", "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errCode(body))

	resp = app.do(t, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp, body = app.api(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
}

func TestErrorMessagesFollowAcceptLanguage(t *testing.T) {
	app := newApp(t)
	for lang, want := range map[string]string{
		"":               "요청한 정보를 찾을 수 없습니다.",
		"ko-KR":          "요청한 정보를 찾을 수 없습니다.",
		"en":             "The requested item was not found.",
		"fr, en;q=0.5":   "The requested item was not found.",
		"de-DE, ja;q=.8": "요청한 정보를 찾을 수 없습니다.",
	} {
		req := httptest.NewRequest("GET", "/api/v1/restaurants/r-missing", nil)
		if lang != "" {
			req.Header.Set("Accept-Language", lang)
		}
		resp := app.do(t, req)
		var out map[string]map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, want, out["error"]["message"], "Accept-Language %q", lang)
	}
}
