package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"trend-spotting-system/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// respondError maps a service error onto a status code. Backend and internal
// failures are logged and reported generically.
func respondError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	kind := services.Classify(err)
	status := fiber.StatusInternalServerError
	msg := "something went wrong, try again"

	switch kind {
	case services.KindValidation:
		status, msg = fiber.StatusBadRequest, err.Error()
	case services.KindConflict:
		status, msg = fiber.StatusConflict, err.Error()
	case services.KindAuthorization:
		status, msg = fiber.StatusUnauthorized, err.Error()
	case services.KindQuota:
		status, msg = fiber.StatusTooManyRequests, err.Error()
	case services.KindNotFound:
		status, msg = fiber.StatusNotFound, err.Error()
	case services.KindBackend:
		status, msg = fiber.StatusBadGateway, "failed to reach the trend backend, try again"
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ backend failure")
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ internal error")
	}

	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"kind":  kind.String(),
	})
}

// bindRequest decodes the body and runs struct-tag validation. On failure it
// returns the 400 body to send.
func bindRequest(c *fiber.Ctx, req interface{}) (fiber.Map, bool) {
	if err := c.BodyParser(req); err != nil {
		return fiber.Map{"error": "Invalid request body", "kind": services.KindValidation.String()}, false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return fiber.Map{
				"error":  "invalid fields: " + strings.Join(fields, ", "),
				"kind":   services.KindValidation.String(),
				"fields": fields,
			}, false
		}
		return fiber.Map{"error": err.Error(), "kind": services.KindValidation.String()}, false
	}
	return nil, true
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func userToken(c *fiber.Ctx) string {
	t, _ := c.Locals("user_token").(string)
	return t
}

func pageParams(c *fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("size", "20"))
	return page, size
}
