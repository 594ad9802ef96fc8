package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/telemetry"
)

// GenerationService submits prompts to the video generation service and
// records the resulting task
type GenerationService struct {
	generator client.VideoGenerator
	registry  TaskRegistry
	provider  string
	logger    zerolog.Logger
}

// NewGenerationService creates a new generation service
func NewGenerationService(generator client.VideoGenerator, registry TaskRegistry, provider string, logger zerolog.Logger) *GenerationService {
	return &GenerationService{
		generator: generator,
		registry:  registry,
		provider:  provider,
		logger:    logger.With().Str("component", "generation").Logger(),
	}
}

// Generate asks the external service for a video. Upstream failures are
// returned as *model.UpstreamRequestError and leave no task behind. A failure
// to record the task is logged only; the caller still gets the task id.
func (s *GenerationService) Generate(ctx context.Context, owner, prompt string) (*model.GenerateResponse, error) {
	taskID, err := s.generator.CreateTask(ctx, prompt)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", owner).Msg("generation request failed")
		return nil, err
	}

	log := s.logger.With().Str("task_id", taskID).Str("user_id", owner).Logger()
	if err := s.registry.Create(ctx, taskID, owner, prompt); err != nil {
		log.Error().Err(err).Msg("failed to record task")
	}

	telemetry.TasksSubmitted.WithLabelValues(s.provider).Inc()
	log.Info().Msg("generation task queued")

	return &model.GenerateResponse{TaskID: taskID, Status: model.StatusQueued}, nil
}
