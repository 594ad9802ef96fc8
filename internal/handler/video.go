package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/justic/shortsgen/internal/middleware"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/service"
	"github.com/justic/shortsgen/pkg/response"
)

type VideoHandler struct {
	generation *service.GenerationService
	tasks      *service.TaskService
	videos     *service.VideoService
	validator  *validator.Validate
}

func NewVideoHandler(generation *service.GenerationService, tasks *service.TaskService, videos *service.VideoService, v *validator.Validate) *VideoHandler {
	return &VideoHandler{
		generation: generation,
		tasks:      tasks,
		videos:     videos,
		validator:  v,
	}
}

// Generate handles POST /api/video/generate
// @Summary      Generate video
// @Description  Submit a prompt to the video generation service
// @Tags         Video
// @Accept       json
// @Produce      json
// @Param        request body model.GenerateRequest true "Generate request"
// @Success      200 {object} model.GenerateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/video/generate [post]
func (h *VideoHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.generation.Generate(c.UserContext(), middleware.GetUserID(c), req.Prompt)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// Status handles GET /api/video/status/:taskId
// @Summary      Get task status
// @Tags         Video
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Success      200 {object} model.TaskStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/video/status/{taskId} [get]
func (h *VideoHandler) Status(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.tasks.Status(c.UserContext(), middleware.GetUserID(c), taskID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// List handles GET /api/video/list
// @Summary      List videos
// @Description  List the caller's videos grouped by task
// @Tags         Video
// @Produce      json
// @Success      200 {object} model.VideoListResponse
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/video/list [get]
func (h *VideoHandler) List(c *fiber.Ctx) error {
	result, err := h.videos.List(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, result)
}

// Stream handles GET /api/video/stream/:taskId?variant=
// @Summary      Stream video
// @Tags         Video
// @Produce      video/mp4
// @Param        taskId  path  string true  "Task ID"
// @Param        variant query string false "Variant (omit for the original)"
// @Success      200
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/video/stream/{taskId} [get]
func (h *VideoHandler) Stream(c *fiber.Ctx) error {
	body, err := h.videos.Stream(c.UserContext(), middleware.GetUserID(c), c.Params("taskId"), c.Query("variant"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Stream(c, "video/mp4", body)
}

// Thumbnail handles GET /api/video/thumbnail/:taskId
// @Summary      Video thumbnail
// @Tags         Video
// @Produce      image/jpeg
// @Param        taskId path string true "Task ID"
// @Success      200
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/video/thumbnail/{taskId} [get]
func (h *VideoHandler) Thumbnail(c *fiber.Ctx) error {
	body, err := h.videos.Thumbnail(c.UserContext(), middleware.GetUserID(c), c.Params("taskId"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Stream(c, "image/jpeg", body)
}

// PublishYouTube handles POST /api/video/youtube/upload
// @Summary      Publish to YouTube
// @Description  Upload a processed variant to the caller's YouTube channel
// @Tags         Video
// @Accept       json
// @Produce      json
// @Param        request body model.YouTubeUploadRequest true "Upload request"
// @Success      200 {object} model.YouTubeUploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/video/youtube/upload [post]
func (h *VideoHandler) PublishYouTube(c *fiber.Ctx) error {
	var req model.YouTubeUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.videos.PublishYouTube(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// AuthorizeFeed guards /ws/tasks/:taskId: only the task owner may subscribe.
func (h *VideoHandler) AuthorizeFeed(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	result, err := h.tasks.Status(c.UserContext(), middleware.GetUserID(c), c.Params("taskId"))
	if err != nil {
		return serviceError(c, err)
	}
	if result.Status == model.StatusNotFound {
		return response.NotFound(c, "Task not found")
	}
	return c.Next()
}
