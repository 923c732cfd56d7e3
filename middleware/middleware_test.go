package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firecontest-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeMsg(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out struct {
		Msg string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Msg
}

func TestRequireUserAndAdmin(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour, time.Hour)
	app := fiber.New()
	app.Get("/me", RequireUser(tokens), func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })
	app.Get("/admin", RequireAdmin(tokens), func(c *fiber.Ctx) error { return c.SendString(AdminID(c)) })

	userToken, err := tokens.Issue("user-1", services.AudienceUser)
	require.NoError(t, err)
	adminToken, err := tokens.Issue("admin-1", services.AudienceAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		status int
		body   string
	}{
		{"missing", "/me", "", "", 401, "Missing Token"},
		{"malformed scheme", "/me", "Authorization", "Basic abc", 401, "Missing Token"},
		{"garbage", "/me", "Authorization", "Bearer nope", 401, "Invalid or expired token"},
		{"user ok", "/me", "Authorization", "Bearer " + userToken, 200, "user-1"},
		{"legacy header", "/me", "x-auth-token", userToken, 200, "user-1"},
		{"admin token on user route", "/me", "Authorization", "Bearer " + adminToken, 401, "Invalid or expired token"},
		{"user token on admin route", "/admin", "Authorization", "Bearer " + userToken, 401, "Invalid or expired token"},
		{"admin ok", "/admin", "Authorization", "Bearer " + adminToken, 200, "admin-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == 200 {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.body, string(body))
			} else {
				assert.Equal(t, tt.body, decodeMsg(t, resp))
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Post("/login", RateLimit(NewIPRateLimiter(0.0001, 2)), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestIPRateLimiter_SeparateBuckets(t *testing.T) {
	l := PerMinute(1, 1)
	assert.True(t, l.GetLimiter("1.1.1.1").Allow())
	assert.False(t, l.GetLimiter("1.1.1.1").Allow())
	assert.True(t, l.GetLimiter("2.2.2.2").Allow())
}

func TestRequestLogger_RecordsRenderedStatus(t *testing.T) {
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "d"}, []string{"method", "route", "status"})
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusTeapot).SendString(err.Error())
		},
	})
	app.Use(RequestLogger(hist))
	app.Get("/items/:id", func(c *fiber.Ctx) error { return fiber.ErrBadRequest })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/7", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, 1, testutil.CollectAndCount(hist))
}
