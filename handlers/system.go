// handlers/system.go
package handlers

import (
	"trend-spotting-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// SetupSystemRoutes registers health, metrics and the enterprise dashboard.
func SetupSystemRoutes(app *fiber.App, db *gorm.DB, gatherer prometheus.Gatherer, enterprise *services.EnterpriseService, log zerolog.Logger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	app.Get("/enterprise/dashboard", func(c *fiber.Ctx) error {
		snap, err := enterprise.Snapshot(c.UserContext())
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(snap)
	})
}
