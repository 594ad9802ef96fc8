package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/config"
	"github.com/justic/shortsgen/internal/discovery"
	"github.com/justic/shortsgen/internal/logging"
	"github.com/justic/shortsgen/internal/media"
	"github.com/justic/shortsgen/internal/queue"
	"github.com/justic/shortsgen/internal/telemetry"
	"github.com/justic/shortsgen/internal/worker"
)

const resolveTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.Server.Env, cfg.Server.LogLevel, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := client.NewS3Client(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise object storage")
	}

	endpoint := resolveCaptionEndpoint(ctx, cfg, log)

	var captioner media.Captioner
	switch cfg.Caption.Backend {
	case "script":
		captioner = media.NewScriptCaptioner(cfg.Caption.Script, endpoint, cfg.Caption.Timeout, nil)
	default:
		ollama := client.NewOllamaClient(endpoint, cfg.Caption.Model, cfg.Caption.Timeout)
		captioner = media.NewOllamaCaptioner(ollama, cfg.Caption.Prompts, cfg.Caption.Timeout, nil, log)
	}

	var transcoder media.Transcoder
	if cfg.Pipeline.TranscoderURL != "" {
		remote := client.NewTranscoderClient(cfg.Pipeline.TranscoderURL, cfg.Pipeline.TranscodeTimeout)
		if err := remote.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Str("url", cfg.Pipeline.TranscoderURL).Msg("Transcoder service not healthy")
		}
		transcoder = remote
	} else {
		transcoder = media.NewScriptTranscoder(cfg.Pipeline.TranscodeScript, cfg.Pipeline.TranscodeTimeout, nil)
	}

	opts := worker.PipelineOptions{
		Variants:         cfg.Pipeline.Variants,
		DefaultCaption:   cfg.Pipeline.DefaultCaption,
		PopTimeout:       cfg.Queue.PopTimeout,
		TranscodeTimeout: cfg.Pipeline.TranscodeTimeout,
		StorageTimeout:   cfg.Pipeline.StorageTimeout,
		Retries:          cfg.Pipeline.Retries,
		TempDir:          cfg.Pipeline.TempDir,
	}

	telemetry.StartMetricsServer(ctx, cfg.Metrics.Addr, log)

	log.Info().
		Str("queue_mode", cfg.Queue.Mode).
		Str("caption_backend", cfg.Caption.Backend).
		Str("caption_endpoint", endpoint).
		Int("concurrency", cfg.Worker.Concurrency).
		Strs("variants", cfg.Pipeline.Variants).
		Msg("Worker starting")

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	if cfg.Queue.Mode == queue.ModeAsynq {
		w := worker.NewPipelineWorker(nil, storage, captioner, transcoder, opts, log)
		runAsynq(ctx, cfg, redisOpt, w, log)
		return
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	consumer := queue.NewRedisQueue(redisClient, cfg.Queue.Name)
	w := worker.NewPipelineWorker(consumer, storage, captioner, transcoder, opts, log)
	w.Workers(ctx, cfg.Worker.Concurrency)
	log.Info().Msg("Worker stopped")
}

// resolveCaptionEndpoint runs once before any job is taken.
func resolveCaptionEndpoint(ctx context.Context, cfg *config.Config, log zerolog.Logger) string {
	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	endpoint, err := discovery.Resolve(rctx, cfg.Caption.Endpoint, cfg.Storage.Region, log)
	if err != nil {
		log.Warn().Err(err).Str("fallback", discovery.DefaultFallback).Msg("Caption endpoint resolution failed")
		return discovery.DefaultFallback
	}
	return endpoint
}

func runAsynq(ctx context.Context, cfg *config.Config, redisOpt asynq.RedisClientOpt, w *worker.PipelineWorker, log zerolog.Logger) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: max(cfg.Worker.Concurrency, 1),
		Queues: map[string]int{
			queue.QueueName(): 1,
		},
		LogLevel: asynqLogLevel,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeVideoProcess, w.ProcessTask)

	if err := srv.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("Asynq worker failed to start")
	}
	<-ctx.Done()
	log.Info().Msg("Shutting down asynq worker")
	srv.Shutdown()
}
