// handlers/session.go
package handlers

import (
	"trend-spotting-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func SetupSessionRoutes(router fiber.Router, sessions *services.SessionRegistry, log zerolog.Logger) {
	router.Post("/session/start", func(c *fiber.Ctx) error {
		snap, err := sessions.Start(userID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	})

	router.Post("/session/end", func(c *fiber.Ctx) error {
		record, err := sessions.End(userID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(record)
	})

	router.Post("/session/log", func(c *fiber.Ctx) error {
		res, err := sessions.LogTrend(c.UserContext(), userID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	router.Get("/session", func(c *fiber.Ctx) error {
		snap, ok := sessions.Get(userID(c))
		if !ok {
			return respondError(c, log, services.ErrSessionInactive)
		}
		return c.JSON(snap)
	})
}
