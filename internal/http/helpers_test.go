package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"quickbite/internal/config"
	"quickbite/internal/http/handlers"
	applog "quickbite/internal/log"
	"quickbite/internal/realtime"
	"quickbite/internal/repos"
	"quickbite/web"
)

const password = "Passw0rd!"

type testApp struct {
	*fiber.App
	deps *handlers.Deps
}

type option func(*config.Config, *handlers.AppOptions)

func withLimits(l handlers.Limits) option {
	return func(_ *config.Config, o *handlers.AppOptions) { o.Limits = l }
}

func withGeocoder(u string) option {
	return func(c *config.Config, _ *handlers.AppOptions) { c.GeocoderURL = u }
}

func withCancelFee(threshold, fee int64) option {
	return func(c *config.Config, _ *handlers.AppOptions) {
		c.CancelFeeThreshold, c.CancelFlatFee = threshold, fee
	}
}

func generousLimits() handlers.Limits {
	return handlers.Limits{
		Global: 1000, GlobalWindow: time.Minute,
		Login: 100, LoginWindow: time.Minute,
		Geo: 100, GeoWindow: time.Minute,
	}
}

func newApp(t *testing.T, opts ...option) *testApp {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		JWTSecret:         []byte("test-secret"),
		AccessTokenTTL:    time.Hour,
		GeocoderURL:       "http://127.0.0.1:0",
		PointsRatePercent: 1,

		CancelFeeThreshold: 15000,
		CancelFlatFee:      1000,
	}
	ao := handlers.AppOptions{Views: web.Engine(), Limits: generousLimits()}
	for _, o := range opts {
		o(&cfg, &ao)
	}
	deps := handlers.NewDeps(db, cfg, realtime.NewHub())
	return &testApp{App: handlers.NewApp(deps, ao), deps: deps}
}

func (a *testApp) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// api sends a JSON request, optionally with a bearer token, and decodes the
// JSON reply into a map.
func (a *testApp) api(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := a.do(t, req)
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func (a *testApp) token(t *testing.T, name string) string {
	t.Helper()
	resp, body := a.api(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": name + "@quickbite.test", "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	tok, _ := body["access_token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func cookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// console is a browser session against the admin console.
type console struct {
	app  *testApp
	csrf string
	sid  string
}

func (a *testApp) console(t *testing.T) *console {
	t.Helper()
	resp := a.do(t, httptest.NewRequest("GET", "/login", nil))
	tok := cookie(resp, "csrf_")
	require.NotEmpty(t, tok, "csrf cookie")
	return &console{app: a, csrf: tok}
}

func (c *console) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf") == "" {
		form.Set("csrf", c.csrf)
	}
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: c.csrf})
	if c.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: c.sid})
	}
	resp := c.app.do(t, req)
	if sid := cookie(resp, "sid"); sid != "" {
		c.sid = sid
	}
	return resp
}

func (c *console) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: c.csrf})
	if c.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: c.sid})
	}
	resp := c.app.do(t, req)
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (c *console) login(t *testing.T, name string) *http.Response {
	t.Helper()
	return c.post(t, "/login", url.Values{"email": {name + "@quickbite.test"}, "password": {password}})
}

// placeOrder has alice order one fried chicken (22,000 with delivery).
func (a *testApp) placeOrder(t *testing.T) string {
	t.Helper()
	resp, body := a.api(t, "POST", "/api/v1/orders", a.token(t, "alice"), map[string]any{
		"restaurant_id":    "r-chicken",
		"items":            []map[string]any{{"menu_item_id": "m-fried", "qty": 1}},
		"delivery_address": "서울 마포구 월드컵북로 1",
		"delivery_lat":     37.55,
		"delivery_lng":     126.92,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

type logEntry struct {
	Level    string         `json:"level"`
	Action   string         `json:"action"`
	Category string         `json:"category"`
	UserID   string         `json:"user_id"`
	Err      string         `json:"err"`
	Fields   map[string]any `json:"fields"`
}

type lockedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// captureLogs collects the structured lines written while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	w := &lockedWriter{}
	applog.SetOutput(w)
	defer applog.SetOutput(os.Stdout)

	fn()

	w.mu.Lock()
	defer w.mu.Unlock()
	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(w.buf.String()), "\n") {
		var e logEntry
		if json.Unmarshal([]byte(line), &e) == nil && e.Action != "" {
			out = append(out, e)
		}
	}
	return out
}

func findLog(entries []logEntry, action string) *logEntry {
	for i := range entries {
		if entries[i].Action == action {
			return &entries[i]
		}
	}
	return nil
}

func errCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["code"].(string)
	return s
}
