package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser(c *fiber.Ctx) error {
	id, _ := c.Locals("user_id").(string)
	token, _ := c.Locals("user_token").(string)
	return c.JSON(fiber.Map{"user_id": id, "token": token})
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("gateway-secret", zerolog.Nop(), "/health"))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	cases := map[string]int{
		"":                      fiber.StatusUnauthorized,
		"Bearer wrong":          fiber.StatusUnauthorized,
		"Bearer gateway-secret": fiber.StatusOK,
		"bearer gateway-secret": fiber.StatusOK,
		"gateway-secret":        fiber.StatusOK,
	}
	for header, want := range cases {
		req := httptest.NewRequest("GET", "/ping", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, "header %q", header)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware(zerolog.Nop()))
	app.Get("/me", echoUser)
	app.Get("/admin", RequireRole("admin"), echoUser)

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Token", "jwt")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Roles", "spotter")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Roles", "spotter, admin")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

type stubValidator map[string]string

func (s stubValidator) ValidateToken(_ context.Context, token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func TestSSEAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/stream", SSEAuthMiddleware(stubValidator{"good": "user-7"}, zerolog.Nop()), echoUser)

	resp, err := app.Test(httptest.NewRequest("GET", "/stream", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/stream?token=bad", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/stream?token=good&device_id=d1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequestLimiter(t *testing.T) {
	limiter := NewRequestLimiter(60, 2)
	frozen := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	limiter.clockNow = func() time.Time { return frozen }

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User-ID"))
		return c.Next()
	})
	app.Use(limiter.Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	call := func(user string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-User-ID", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusNoContent, call("a"))
	assert.Equal(t, fiber.StatusNoContent, call("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, call("a"))
	assert.Equal(t, fiber.StatusNoContent, call("b"), "buckets are per user")

	frozen = frozen.Add(time.Second)
	assert.Equal(t, fiber.StatusNoContent, call("a"), "one token refills per second at 60 rpm")
}

func TestRequestLimiterSweep(t *testing.T) {
	limiter := NewRequestLimiter(60, 1)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	limiter.clockNow = func() time.Time { return now }

	limiter.obtain("a")
	now = now.Add(11 * time.Minute)
	limiter.obtain("b")
	limiter.Sweep()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.visitors, "a")
	assert.Contains(t, limiter.visitors, "b")
}
