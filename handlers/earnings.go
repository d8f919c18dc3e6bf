// handlers/earnings.go
package handlers

import (
	"trend-spotting-system/models"
	"trend-spotting-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type settleRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed rejected"`
}

func SetupEarningsRoutes(router fiber.Router, earnings *services.EarningsService, log zerolog.Logger) {
	router.Get("/earnings", func(c *fiber.Ctx) error {
		summary, err := earnings.Summary(userID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(summary)
	})

	router.Get("/earnings/history", func(c *fiber.Ctx) error {
		page, size := pageParams(c)
		entries, total, err := earnings.List(userID(c), page, size)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"earnings": entries,
			"total":    total,
			"page":     page,
		})
	})
}

// SetupAdminEarningsRoutes expects a router already guarded by RequireRole("admin").
func SetupAdminEarningsRoutes(router fiber.Router, earnings *services.EarningsService, log zerolog.Logger) {
	router.Patch("/earnings/:id", func(c *fiber.Ctx) error {
		var req settleRequest
		if body, ok := bindRequest(c, &req); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(body)
		}
		entry, err := earnings.Transition(c.Params("id"), models.EarningStatus(req.Status))
		if err != nil {
			return respondError(c, log, err)
		}
		log.Info().Str("admin_id", userID(c)).Str("earning_id", entry.ID).Str("status", req.Status).Msg("[ADMIN] earning settled")
		return c.JSON(entry)
	})
}
