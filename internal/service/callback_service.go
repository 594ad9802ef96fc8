package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/artifact"
	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/media"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/queue"
	"github.com/justic/shortsgen/internal/repository"
	"github.com/justic/shortsgen/internal/telemetry"
)

const (
	defaultPrompt  = "Generated Video"
	titleMaxRunes  = 50
	uploadTimeout  = 5 * time.Minute
	retryInterval  = time.Second
	catalogTimeout = 10 * time.Second
)

// Callback acknowledgement messages
const (
	AckWaiting   = "waiting"
	AckDuplicate = "already processed"
	AckNoOwner   = "User mapping not found"
	AckSuccess   = "success"
	AckFailed    = "failed"
)

// CallbackOptions configures the callback pipeline
type CallbackOptions struct {
	// Variants are the configured pipeline variants; the first one names the
	// job's output key.
	Variants []string
	// SingleVariant enqueues jobs carrying an explicit variant.
	SingleVariant bool
	LogType       string
	TempDir       string
	Retries       int
	// StorageTimeout bounds each upload attempt.
	StorageTimeout time.Duration
}

// CallbackService stores finished videos and hands them to the worker pipeline
type CallbackService struct {
	registry    TaskRegistry
	downloader  client.Downloader
	thumbnailer media.Thumbnailer
	storage     client.StorageClient
	catalogue   repository.Catalogue
	producer    queue.Producer
	notifier    StatusNotifier
	opts        CallbackOptions
	logger      zerolog.Logger
}

// NewCallbackService creates a new callback service. notifier may be nil.
func NewCallbackService(
	registry TaskRegistry,
	downloader client.Downloader,
	thumbnailer media.Thumbnailer,
	storage client.StorageClient,
	catalogue repository.Catalogue,
	producer queue.Producer,
	notifier StatusNotifier,
	opts CallbackOptions,
	logger zerolog.Logger,
) *CallbackService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if len(opts.Variants) == 0 {
		opts.Variants = artifact.DefaultVariants
	}
	if opts.LogType == "" {
		opts.LogType = model.LogTypeVideoGenerate
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = uploadTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &CallbackService{
		registry:    registry,
		downloader:  downloader,
		thumbnailer: thumbnailer,
		storage:     storage,
		catalogue:   catalogue,
		producer:    producer,
		notifier:    notifier,
		opts:        opts,
		logger:      logger.With().Str("component", "callback").Logger(),
	}
}

// Handle processes one completion notice. It never returns an error: every
// outcome is reported through the acknowledgement and the task status.
func (s *CallbackService) Handle(ctx context.Context, p *model.CallbackPayload) *model.CallbackAck {
	taskID, resultURL := p.TaskID(), p.ResultURL()
	if taskID == "" || resultURL == "" {
		telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeWaiting).Inc()
		s.logger.Info().Str("task_id", taskID).Err(model.ErrCallbackIncomplete).Msg("callback not ready")
		return ack(AckWaiting)
	}

	log := s.logger.With().Str("task_id", taskID).Logger()

	task, err := s.registry.Get(ctx, taskID)
	switch {
	case err == nil && task.Status.IsTerminal():
		telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeDuplicate).Inc()
		log.Info().Str("status", string(task.Status)).Msg("duplicate callback ignored")
		return ack(AckDuplicate)
	case err != nil && !errors.Is(err, model.ErrTaskNotFound):
		telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeFailed).Inc()
		log.Error().Err(err).Msg("failed to read task")
		return ack(AckFailed)
	}

	if err := s.registry.SetStatus(ctx, taskID, model.StatusProcessing); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeDuplicate).Inc()
			log.Info().Msg("task finished concurrently, callback ignored")
			return ack(AckDuplicate)
		}
		telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeFailed).Inc()
		log.Error().Err(err).Msg("failed to mark task processing")
		return ack(AckFailed)
	}
	s.notifier.BroadcastStatus(taskID, model.StatusProcessing, "")

	if task == nil {
		s.setStatus(ctx, log, taskID, model.StatusFailed)
		telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeNoOwner).Inc()
		log.Warn().Err(model.ErrOwnerMappingMissing).Msg("callback for unknown task")
		s.notifier.BroadcastStatus(taskID, model.StatusFailed, "")
		return ack(AckNoOwner)
	}

	log = log.With().Str("user_id", task.Owner).Logger()
	prompt := task.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	videoKey, err := s.ingest(ctx, log, task.Owner, taskID, prompt, resultURL)
	if err != nil {
		log.Error().Err(err).Msg("callback processing failed")
		s.setStatus(ctx, log, taskID, model.StatusFailed)
		s.opLog(ctx, log, task.Owner, taskID, model.LogStatusFailed, err.Error())
		s.notifier.BroadcastStatus(taskID, model.StatusFailed, "")
		telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeFailed).Inc()
		return ack(AckFailed)
	}

	s.setStatus(ctx, log, taskID, model.StatusCompleted)
	s.notifier.BroadcastStatus(taskID, model.StatusCompleted, videoKey)
	telemetry.CallbacksTotal.WithLabelValues(telemetry.OutcomeSuccess).Inc()
	log.Info().Str("video_key", videoKey).Msg("callback processed")
	return ack(AckSuccess)
}

// ingest covers download through the success log entry. The temp dir is
// removed on every path.
func (s *CallbackService) ingest(ctx context.Context, log zerolog.Logger, owner, taskID, prompt, resultURL string) (string, error) {
	dir, err := os.MkdirTemp(s.opts.TempDir, "callback-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	videoPath := filepath.Join(dir, "video.mp4")
	thumbPath := filepath.Join(dir, "thumb.jpg")

	if err := s.downloader.Download(ctx, resultURL, videoPath); err != nil {
		return "", &model.PipelineStageError{Stage: "download", Key: resultURL, Err: err}
	}

	if err := s.thumbnailer.Extract(ctx, videoPath, thumbPath); err != nil {
		return "", &model.PipelineStageError{Stage: "thumbnail", Key: taskID, Err: err}
	}

	videoKey := artifact.VideoKey(owner, taskID, "")
	if err := s.upload(ctx, videoKey, videoPath, "video/mp4"); err != nil {
		return "", &model.PipelineStageError{Stage: "upload", Key: videoKey, Err: err}
	}
	thumbKey := artifact.ThumbnailKey(owner, taskID)
	if err := s.upload(ctx, thumbKey, thumbPath, "image/jpeg"); err != nil {
		return "", &model.PipelineStageError{Stage: "upload", Key: thumbKey, Err: err}
	}

	dbCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	if err := s.catalogue.InsertFinalVideo(dbCtx, &model.FinalVideo{
		VideoKey:    taskID,
		UserID:      owner,
		Title:       truncateRunes(prompt, titleMaxRunes),
		Description: prompt,
	}); err != nil {
		return "", err
	}

	job := s.jobFor(owner, taskID)
	if err := s.producer.Push(ctx, job); err != nil {
		return "", &model.PipelineStageError{Stage: "enqueue", Key: job.InputKey, Err: err}
	}
	log.Info().Str("input_key", job.InputKey).Str("output_key", job.OutputKey).Msg("job enqueued")

	if err := s.catalogue.InsertOperationLog(dbCtx, &model.OperationLog{
		UserID:   owner,
		LogType:  s.opts.LogType,
		Status:   model.LogStatusSuccess,
		VideoKey: taskID,
		Message:  "Callback processed successfully",
	}); err != nil {
		return "", err
	}

	return videoKey, nil
}

func (s *CallbackService) jobFor(owner, taskID string) *model.Job {
	first := s.opts.Variants[0]
	job := &model.Job{
		InputKey:  artifact.VideoKey(owner, taskID, ""),
		OutputKey: artifact.VideoKey(owner, taskID, first),
	}
	if s.opts.SingleVariant {
		job.Variant = first
	}
	return job
}

func (s *CallbackService) upload(ctx context.Context, key, path, contentType string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInterval
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		upCtx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
		defer cancel()
		_, err := s.storage.UploadFile(upCtx, key, path, contentType)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.Retries)), ctx))
}

func (s *CallbackService) setStatus(ctx context.Context, log zerolog.Logger, taskID string, status model.Status) {
	if err := s.registry.SetStatus(ctx, taskID, status); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("failed to update task status")
	}
}

// opLog writes a best-effort operation log; its own failure is only logged
func (s *CallbackService) opLog(ctx context.Context, log zerolog.Logger, owner, taskID, status, message string) {
	dbCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	if err := s.catalogue.InsertOperationLog(dbCtx, &model.OperationLog{
		UserID:   owner,
		LogType:  s.opts.LogType,
		Status:   status,
		VideoKey: taskID,
		Message:  message,
	}); err != nil {
		log.Error().Err(err).Msg("failed to write operation log")
	}
}

func ack(msg string) *model.CallbackAck {
	return &model.CallbackAck{Code: 200, Msg: msg}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
