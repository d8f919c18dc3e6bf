// handlers/spotter.go
package handlers

import (
	"trend-spotting-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func SetupSpotterRoutes(router fiber.Router, spotters *services.SpotterService, awards *services.AchievementService, log zerolog.Logger) {
	router.Get("/spotter", func(c *fiber.Ctx) error {
		overview, err := spotters.Overview(userID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(overview)
	})

	router.Get("/spotter/achievements", func(c *fiber.Ctx) error {
		list, err := awards.List(userID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"achievements": list})
	})
}
