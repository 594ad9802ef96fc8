package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/pkg/response"
)

// serviceError maps domain errors onto the error envelope
func serviceError(c *fiber.Ctx, err error) error {
	var upstream *model.UpstreamRequestError
	switch {
	case errors.As(err, &upstream):
		var details interface{}
		if upstream.StatusCode != 0 {
			details = fiber.Map{"status": upstream.StatusCode}
		}
		return response.UpstreamError(c, "Video generation request failed", details)
	case errors.Is(err, model.ErrForbidden):
		return response.Forbidden(c, "Task belongs to another user")
	case errors.Is(err, model.ErrTaskNotFound):
		return response.NotFound(c, "Task not found")
	case errors.Is(err, model.ErrVideoNotFound):
		return response.NotFound(c, "Video not found")
	case errors.Is(err, model.ErrUnknownVariant):
		return response.ValidationError(c, "Unknown variant", nil)
	case errors.Is(err, client.ErrNoYouTubeToken):
		return response.Forbidden(c, "YouTube account is not connected")
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}
