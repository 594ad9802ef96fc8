package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/artifact"
	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/media"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/queue"
	"github.com/justic/shortsgen/internal/telemetry"
)

// Pipeline stages
const (
	StageDownload  = "download"
	StageCaption   = "caption"
	StageTranscode = "transcode"
	StageUpload    = "upload"
)

const (
	defaultPopTimeout     = 5 * time.Second
	defaultQueueBackoff   = 5 * time.Second
	defaultCaption        = "편집된 영상입니다"
	defaultTranscodeLimit = 15 * time.Minute
	defaultStorageTimeout = 5 * time.Minute
)

// PipelineOptions configures a PipelineWorker
type PipelineOptions struct {
	Variants         []string
	DefaultCaption   string
	PopTimeout       time.Duration
	QueueBackoff     time.Duration
	TranscodeTimeout time.Duration
	StorageTimeout   time.Duration // per download or upload attempt
	Retries          int
	RetryBackoff     time.Duration
	TempDir          string
}

// PipelineWorker turns a raw generated video into captioned short variants
type PipelineWorker struct {
	consumer   queue.Consumer
	storage    client.StorageClient
	captioner  media.Captioner
	transcoder media.Transcoder
	scheme     *artifact.Scheme
	opts       PipelineOptions
	logger     zerolog.Logger
}

// target is one variant the job must produce.
type target struct {
	variant string
	key     string
}

// NewPipelineWorker creates a new pipeline worker. consumer may be nil when
// jobs arrive through asynq.
func NewPipelineWorker(
	consumer queue.Consumer,
	storage client.StorageClient,
	captioner media.Captioner,
	transcoder media.Transcoder,
	opts PipelineOptions,
	logger zerolog.Logger,
) *PipelineWorker {
	if len(opts.Variants) == 0 {
		opts.Variants = artifact.DefaultVariants
	}
	if opts.DefaultCaption == "" {
		opts.DefaultCaption = defaultCaption
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = defaultPopTimeout
	}
	if opts.QueueBackoff <= 0 {
		opts.QueueBackoff = defaultQueueBackoff
	}
	if opts.TranscodeTimeout <= 0 {
		opts.TranscodeTimeout = defaultTranscodeLimit
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = defaultStorageTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}

	return &PipelineWorker{
		consumer:   consumer,
		storage:    storage,
		captioner:  captioner,
		transcoder: transcoder,
		scheme:     artifact.NewScheme(opts.Variants),
		opts:       opts,
		logger:     logger.With().Str("component", "pipeline_worker").Logger(),
	}
}

// Workers runs n independent loops sharing the consumer and blocks until
// all of them return.
func (w *PipelineWorker) Workers(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.logger.Info().Int("loop", id).Msg("Worker loop started")
			w.Run(ctx)
			w.logger.Info().Int("loop", id).Msg("Worker loop stopped")
		}(i)
	}
	wg.Wait()
}

// Run pops jobs until ctx is cancelled. A job in progress is finished before
// Run returns.
func (w *PipelineWorker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := w.consumer.Pop(ctx, w.opts.PopTimeout)
		if errors.Is(err, queue.ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Dur("backoff", w.opts.QueueBackoff).Msg("Queue unavailable")
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.opts.QueueBackoff):
			}
			continue
		}

		if err := w.HandleMessage(context.WithoutCancel(ctx), raw); err != nil {
			w.logger.Error().Err(err).Msg("Job abandoned")
		}
	}
}

// HandleMessage parses one queue message and runs it. Malformed messages are
// logged and dropped.
func (w *PipelineWorker) HandleMessage(ctx context.Context, raw []byte) error {
	job, err := model.ParseJob(raw)
	if err != nil {
		telemetry.JobsProcessed.WithLabelValues(telemetry.OutcomeMalformed).Inc()
		w.logger.Error().Err(err).Str("payload", string(raw)).Msg("Dropping malformed job")
		return nil
	}
	return w.Process(ctx, job)
}

// ProcessTask handles a video job delivered by asynq
func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	job, err := model.ParseJob(t.Payload())
	if err != nil {
		telemetry.JobsProcessed.WithLabelValues(telemetry.OutcomeMalformed).Inc()
		w.logger.Error().Err(err).Msg("Dropping malformed asynq job")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return w.Process(ctx, job)
}

// Process runs download, caption, transcode and upload for one job. The
// temporary directory is always removed.
func (w *PipelineWorker) Process(ctx context.Context, job *model.Job) error {
	telemetry.JobsInFlight.Inc()
	defer telemetry.JobsInFlight.Dec()

	logger := w.logger.With().
		Str("input_key", job.InputKey).
		Str("output_key", job.OutputKey).
		Str("variant", job.Variant).
		Logger()
	logger.Info().Msg("Processing job")

	err := w.process(ctx, job, logger)
	if err != nil {
		telemetry.JobsProcessed.WithLabelValues(telemetry.OutcomeFailed).Inc()
		return err
	}
	telemetry.JobsProcessed.WithLabelValues(telemetry.OutcomeSuccess).Inc()
	logger.Info().Msg("Job completed")
	return nil
}

func (w *PipelineWorker) process(ctx context.Context, job *model.Job, logger zerolog.Logger) error {
	targets := w.targets(job)

	dir, err := os.MkdirTemp(w.opts.TempDir, "job-*")
	if err != nil {
		return &model.PipelineStageError{Stage: StageDownload, Key: job.InputKey, Err: err}
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input.mp4")
	if err := w.timed(StageDownload, func() error {
		return w.download(ctx, job.InputKey, inPath)
	}); err != nil {
		return &model.PipelineStageError{Stage: StageDownload, Key: job.InputKey, Err: err}
	}

	variants := make([]string, len(targets))
	for i, tg := range targets {
		variants[i] = tg.variant
	}
	captions := w.caption(ctx, inPath, variants, logger)

	for _, tg := range targets {
		outPath := filepath.Join(dir, "output_"+tg.variant+".mp4")

		if err := w.timed(StageTranscode, func() error {
			tctx, cancel := context.WithTimeout(ctx, w.opts.TranscodeTimeout)
			defer cancel()
			return w.transcoder.Transcode(tctx, inPath, outPath, captions[tg.variant])
		}); err != nil {
			return &model.PipelineStageError{Stage: StageTranscode, Key: tg.key, Err: err}
		}

		if err := w.timed(StageUpload, func() error {
			return w.retry(ctx, func() error {
				upCtx, cancel := context.WithTimeout(ctx, w.opts.StorageTimeout)
				defer cancel()
				_, err := w.storage.UploadFile(upCtx, tg.key, outPath, "video/mp4")
				return err
			})
		}); err != nil {
			return &model.PipelineStageError{Stage: StageUpload, Key: tg.key, Err: err}
		}
		logger.Info().Str("key", tg.key).Msg("Variant uploaded")
	}
	return nil
}

// targets maps a job to the variants it must produce. An explicit variant
// writes to output_key only; otherwise every configured variant is produced
// next to output_key.
func (w *PipelineWorker) targets(job *model.Job) []target {
	if job.Variant != "" {
		return []target{{variant: job.Variant, key: job.OutputKey}}
	}

	key, err := w.scheme.Parse(job.OutputKey)
	if err != nil {
		first := w.scheme.Variants()[0]
		return []target{{variant: first, key: job.OutputKey}}
	}

	variants := w.scheme.Variants()
	out := make([]target, 0, len(variants))
	for _, v := range variants {
		out = append(out, target{variant: v, key: artifact.VideoKey(key.Owner, key.TaskID, v)})
	}
	return out
}

func (w *PipelineWorker) download(ctx context.Context, key, path string) error {
	return w.retry(ctx, func() error {
		dlCtx, cancel := context.WithTimeout(ctx, w.opts.StorageTimeout)
		defer cancel()
		err := w.storage.DownloadFile(dlCtx, key, path)
		if errors.Is(err, client.ErrObjectNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
}

// retry runs op up to Retries+1 times with exponential backoff between
// attempts.
func (w *PipelineWorker) retry(ctx context.Context, op backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.RetryBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(w.opts.Retries)), ctx)
	return backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		w.logger.Warn().Err(err).Dur("retry_in", next).Msg("Storage call failed, retrying")
	})
}

// caption never fails: missing captions fall back to the default.
func (w *PipelineWorker) caption(ctx context.Context, videoPath string, variants []string, logger zerolog.Logger) map[string]string {
	var captions map[string]string
	_ = w.timed(StageCaption, func() error {
		var err error
		captions, err = w.captioner.Caption(ctx, videoPath, variants)
		if err != nil {
			logger.Warn().Err(err).Msg("Caption generation failed, using default caption")
		}
		return nil
	})

	filled, degraded := media.FillDefaults(captions, variants, w.opts.DefaultCaption)
	for _, v := range degraded {
		telemetry.CaptionsDegraded.WithLabelValues(v).Inc()
		logger.Warn().Str("caption_variant", v).Msg("Caption degraded to default")
	}
	return filled
}

func (w *PipelineWorker) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	telemetry.StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}
