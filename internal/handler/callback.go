package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/service"
	"github.com/justic/shortsgen/internal/telemetry"
)

// CallbackHandler receives completion notifications from the generation
// service. It always answers 200 so the sender does not retry.
type CallbackHandler struct {
	service *service.CallbackService
	logger  zerolog.Logger
}

func NewCallbackHandler(svc *service.CallbackService, logger zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{
		service: svc,
		logger:  logger.With().Str("component", "callback_handler").Logger(),
	}
}

// Handle handles POST /api/video/callback
// @Summary      Generation callback
// @Description  Called by the generation service when a video is ready
// @Tags         Video
// @Accept       json
// @Produce      json
// @Param        request body model.CallbackPayload true "Callback payload"
// @Success      200 {object} model.CallbackAck
// @Router       /api/video/callback [post]
func (h *CallbackHandler) Handle(c *fiber.Ctx) error {
	var payload model.CallbackPayload
	if err := c.BodyParser(&payload); err != nil {
		telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeMalformed).Inc()
		h.logger.Warn().Err(err).Msg("Unparseable callback body")
		return c.JSON(model.CallbackAck{Code: fiber.StatusOK, Msg: service.AckWaiting})
	}

	return c.JSON(h.service.Handle(c.UserContext(), &payload))
}
