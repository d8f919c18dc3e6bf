// handlers/trends.go
package handlers

import (
	"errors"
	"time"

	"trend-spotting-system/models"
	"trend-spotting-system/services"
	"trend-spotting-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type submitTrendRequest struct {
	PostURL       string               `json:"post_url" form:"post_url" validate:"required,max=2048"`
	Title         string               `json:"title" form:"title" validate:"max=200"`
	Description   string               `json:"description" form:"description" validate:"max=500"`
	Category      string               `json:"category" form:"category" validate:"max=64"`
	ScreenshotURL string               `json:"screenshot_url" form:"screenshot_url" validate:"omitempty,url"`
	ThumbnailURL  string               `json:"thumbnail_url" form:"thumbnail_url" validate:"omitempty,url"`
	HasVideo      bool                 `json:"has_video" form:"has_video"`
	PostedAt      string               `json:"posted_at" form:"posted_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Views         int64                `json:"views_count" form:"views_count" validate:"gte=0"`
	Likes         int64                `json:"likes_count" form:"likes_count" validate:"gte=0"`
	Comments      int64                `json:"comments_count" form:"comments_count" validate:"gte=0"`
	Shares        int64                `json:"shares_count" form:"shares_count" validate:"gte=0"`
	Metadata      models.TrendMetadata `json:"metadata" form:"-"`
}

func (r submitTrendRequest) toInput(userID string) services.SubmitTrendInput {
	in := services.SubmitTrendInput{
		UserID:        userID,
		PostURL:       r.PostURL,
		Title:         r.Title,
		Description:   r.Description,
		Category:      r.Category,
		ScreenshotURL: r.ScreenshotURL,
		ThumbnailURL:  r.ThumbnailURL,
		HasVideo:      r.HasVideo,
		Views:         r.Views,
		Likes:         r.Likes,
		Comments:      r.Comments,
		Shares:        r.Shares,
		Metadata:      r.Metadata,
	}
	if r.PostedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.PostedAt); err == nil {
			in.PostedAt = &t
		}
	}
	return in
}

func SetupTrendRoutes(router fiber.Router, submissions *services.SubmissionService, store utils.ScreenshotStore, log zerolog.Logger) {
	router.Post("/trends", func(c *fiber.Ctx) error {
		var req submitTrendRequest
		if body, ok := bindRequest(c, &req); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(body)
		}

		// Multipart submissions may carry the screenshot itself
		if fh, err := c.FormFile("screenshot"); err == nil && fh != nil {
			url, err := utils.SaveScreenshot(c.UserContext(), store, userID(c), fh)
			if err != nil {
				if errors.Is(err, utils.ErrInvalidScreenshot) {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "kind": services.KindValidation.String()})
				}
				log.Error().Err(err).Str("user_id", userID(c)).Msg("❌ [SUBMIT] screenshot upload failed")
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
					"error": "failed to upload screenshot, try again",
					"kind":  services.KindBackend.String(),
				})
			}
			req.ScreenshotURL = url
		}

		res, err := submissions.SubmitTrend(c.UserContext(), req.toInput(userID(c)))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	router.Post("/trends/preview", func(c *fiber.Ctx) error {
		var req submitTrendRequest
		if body, ok := bindRequest(c, &req); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(body)
		}
		est, err := submissions.Preview(req.toInput(userID(c)))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(est)
	})

	router.Get("/trends/mine", func(c *fiber.Ctx) error {
		page, size := pageParams(c)
		trends, total, err := submissions.ListMine(userID(c), page, size)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"trends": trends,
			"total":  total,
			"page":   page,
		})
	})
}
