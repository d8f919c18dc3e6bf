// handlers/validation.go
package handlers

import (
	"trend-spotting-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type voteRequest struct {
	Vote       string   `json:"vote" validate:"required,oneof=verify reject"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

func SetupValidationRoutes(router fiber.Router, validations *services.ValidationService, log zerolog.Logger) {
	router.Post("/trends/:id/vote", func(c *fiber.Ctx) error {
		var req voteRequest
		if body, ok := bindRequest(c, &req); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(body)
		}

		res, err := validations.CastVote(c.UserContext(), services.VoteInput{
			UserID:     userID(c),
			UserToken:  userToken(c),
			TrendID:    c.Params("id"),
			Vote:       services.VoteType(req.Vote),
			Confidence: req.Confidence,
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	router.Get("/validation/limit", func(c *fiber.Ctx) error {
		state, err := validations.Limit(c.UserContext(), userID(c), userToken(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(state)
	})
}
