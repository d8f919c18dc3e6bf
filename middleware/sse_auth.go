// middleware/sse_auth.go
package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// TokenValidator resolves a backend access token to a user id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (string, error)
}

// SSEAuthMiddleware validates `token` from the query string, since EventSource
// cannot set headers.
//
// Usage:
//
//	app.Get("/session/stream", middleware.SSEAuthMiddleware(backend, log), sessions.StreamStreakSSE)
func SSEAuthMiddleware(validator TokenValidator, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" {
			log.Warn().Str("path", c.Path()).Msg("[SSEAuth] ❌ Missing token query param")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}

		userID, err := validator.ValidateToken(c.UserContext(), accessToken)
		if err != nil {
			log.Warn().Err(err).Str("token_prefix", accessToken[:min(10, len(accessToken))]).Msg("[SSEAuth] ❌ Validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("device_id", deviceID)
		c.Locals("user_token", accessToken)

		log.Debug().Str("user_id", userID).Str("device_id", deviceID).Msg("[SSEAuth] ✅ Authenticated")
		return c.Next()
	}
}
