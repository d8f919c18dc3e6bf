// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// GatewayAuthMiddleware admits only requests carrying the gateway's service token.
// Paths listed in open (liveness probes) skip the check.
func GatewayAuthMiddleware(expectedToken string, log zerolog.Logger, open ...string) fiber.Handler {
	if expectedToken == "" {
		log.Fatal().Msg("❌ TREND_SERVICE_TOKEN is not set, refusing to start without gateway auth")
	}
	want := []byte(expectedToken)
	skip := make(map[string]struct{}, len(open))
	for _, p := range open {
		skip[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			log.Warn().Str("path", c.Path()).Str("ip", c.IP()).Msg("🚫 [GATEWAY_AUTH] missing service token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			log.Warn().Str("path", c.Path()).Str("ip", c.IP()).Msg("❌ [GATEWAY_AUTH] service token mismatch")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}

// bearerToken accepts "Bearer <token>" or a bare token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
