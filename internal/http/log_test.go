package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginLogging(t *testing.T) {
	app := newApp(t)
	c := app.console(t)

	logs := captureLogs(t, func() {
		c.post(t, "/login", url.Values{"email": {"alice@quickbite.test"}, "password": {"nope"}})
		c.login(t, "alice")
	})

	fail := findLog(logs, "auth.login.fail")
	require.NotNil(t, fail)
	assert.Equal(t, "security", fail.Category)
	assert.Equal(t, "warn", fail.Level)
	assert.Equal(t, "alice@quickbite.test", fail.Fields["email"])

	ok := findLog(logs, "auth.login.success")
	require.NotNil(t, ok)
	assert.Equal(t, "audit", ok.Category)
	assert.Equal(t, "u-alice", ok.UserID)
	for _, e := range logs {
		assert.NotContains(t, e.Fields, "password")
	}
}

func TestAccessDenialLogging(t *testing.T) {
	app := newApp(t)
	cust := app.console(t)
	require.Equal(t, http.StatusFound, cust.login(t, "bob").StatusCode)
	bob := app.token(t, "bob")

	logs := captureLogs(t, func() {
		cust.get(t, "/admin/users")
		app.api(t, "GET", "/api/v1/rider/orders", bob, nil)
		app.api(t, "GET", "/api/v1/me", "forged.token.value", nil)
	})

	admin := findLog(logs, "access.denied.admin")
	require.NotNil(t, admin)
	assert.Equal(t, "u-bob", admin.UserID)
	assert.Equal(t, "customer", admin.Fields["role"])

	role := findLog(logs, "access.denied.role")
	require.NotNil(t, role)
	assert.Equal(t, "security", role.Category)

	assert.NotNil(t, findLog(logs, "auth.token.reject"))
}

func TestAdminMutationsAreAudited(t *testing.T) {
	app := newApp(t)
	id := app.placeOrder(t)
	admin := app.console(t)
	require.Equal(t, http.StatusFound, admin.login(t, "admin").StatusCode)

	logs := captureLogs(t, func() {
		admin.post(t, "/admin/orders/"+id+"/status", url.Values{"status": {"confirmed"}})
		admin.post(t, "/admin/coupons", url.Values{
			"code": {"spring5"}, "kind": {"flat"}, "value": {"5000"}, "min_order": {"20000"},
			"usage_limit": {"10"}, "expires_at": {"2099-03-31"},
		})
		admin.post(t, "/admin/coupons/SPRING5/deactivate", nil)
		admin.post(t, "/admin/ads", url.Values{
			"title": {"봄맞이 할인"}, "image_url": {"/img/spring.png"},
			"starts_at": {"2020-03-01"}, "ends_at": {"2020-03-31"},
		})
		admin.post(t, "/admin/ads/ad-welcome/active", url.Values{"active": {"0"}})
	})

	for _, action := range []string{
		"admin.orders.update", "admin.coupons.create", "admin.coupons.deactivate",
		"admin.ads.create", "admin.ads.toggle",
	} {
		e := findLog(logs, action)
		if assert.NotNil(t, e, action) {
			assert.Equal(t, "audit", e.Category, action)
			assert.Equal(t, "u-admin", e.UserID, action)
		}
	}
	assert.Equal(t, id, findLog(logs, "admin.orders.update").Fields["order_id"])

	resp, body := app.api(t, "POST", "/api/v1/coupons/validate", app.token(t, "alice"), map[string]any{
		"code": "spring5", "subtotal": 30000,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "deactivated coupon: %v", body)

	resp, body = app.api(t, "GET", "/api/v1/ads", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["ads"], "welcome ad switched off")
}

func TestServerErrorsAreLoggedWithCause(t *testing.T) {
	app := newApp(t, withGeocoder("http://127.0.0.1:1"))
	var resp *http.Response
	var body map[string]any
	logs := captureLogs(t, func() {
		resp, body = app.api(t, "GET", "/api/v1/geo/geocode?q="+url.QueryEscape("서울 마포구"), "", nil)
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "server_error", errCode(body))
	e := findLog(logs, "geo.geocode.fail")
	require.NotNil(t, e)
	assert.Equal(t, "error", e.Level)
	assert.NotEmpty(t, e.Err)
}
