package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/justic/shortsgen/internal/artifact"
	"github.com/justic/shortsgen/internal/auth"
	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/config"
	"github.com/justic/shortsgen/internal/handler"
	"github.com/justic/shortsgen/internal/logging"
	"github.com/justic/shortsgen/internal/media"
	"github.com/justic/shortsgen/internal/middleware"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/queue"
	"github.com/justic/shortsgen/internal/registry"
	"github.com/justic/shortsgen/internal/repository"
	"github.com/justic/shortsgen/internal/service"
	ws "github.com/justic/shortsgen/internal/websocket"
	"github.com/justic/shortsgen/pkg/response"
)

// @title          Shortsgen API
// @version        1.0
// @description    Prompt-to-shorts video generation API.
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.Server.Env, cfg.Server.LogLevel, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis not available")
	}

	if cfg.Postgres.DSN == "" {
		log.Fatal().Msg("postgres.dsn is required")
	}
	pool, err := repository.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to postgres")
	}
	defer pool.Close()
	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	repo := repository.New(pool)

	storage, err := client.NewS3Client(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise object storage")
	}

	generator, err := client.NewKIEClient(&cfg.KIE, cfg.Server.BaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise generation client")
	}

	var producer queue.Producer
	switch cfg.Queue.Mode {
	case queue.ModeAsynq:
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		producer = queue.NewAsynqProducer(asynqClient, cfg.Queue.MaxRetry, queue.TaskTimeout(cfg.Pipeline.TranscodeTimeout, len(cfg.Pipeline.Variants)))
	default:
		producer = queue.NewRedisQueue(redisClient, cfg.Queue.Name)
	}

	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err = auth.NewJWKSVerifier(ctx, &cfg.Zitadel)
		if err != nil {
			log.Warn().Err(err).Msg("JWKS verifier not initialized")
		} else {
			defer jwksVerifier.Close()
		}
	}

	validate := validator.New()

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	tasks := registry.New(redisClient, cfg.Registry.TTL)
	scheme := artifact.NewScheme(cfg.Pipeline.Variants)
	youtube := client.NewYouTubeClient(&cfg.YouTube, repo)

	logType := model.LogTypeVideoGenerate
	if cfg.KIE.Provider == "grok" {
		logType = model.LogTypeVideoGenerateV2
	}

	generationService := service.NewGenerationService(generator, tasks, cfg.KIE.Provider, log)
	taskService := service.NewTaskService(tasks)
	videoService := service.NewVideoService(storage, scheme, repo, youtube, log)
	callbackService := service.NewCallbackService(
		tasks,
		client.NewHTTPDownloader(cfg.Pipeline.DownloadTimeout, cfg.Pipeline.Retries),
		media.NewFFmpegThumbnailer(nil),
		storage,
		repo,
		producer,
		hub,
		service.CallbackOptions{
			Variants:       scheme.Variants(),
			SingleVariant:  cfg.Pipeline.Mode == "single",
			LogType:        logType,
			TempDir:        cfg.Pipeline.TempDir,
			Retries:        cfg.Pipeline.Retries,
			StorageTimeout: cfg.Pipeline.StorageTimeout,
		},
		log,
	)

	videoHandler := handler.NewVideoHandler(generationService, taskService, videoService, validate)
	callbackHandler := handler.NewCallbackHandler(callbackService, log)

	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authn := auth.NewAuthenticator(tokenVerifier, cfg.JWT.Secret)
	authHandler := handler.NewAuthHandler(authn)

	apiAuthMiddleware := middleware.NewAuthMiddleware(authn, log).Authenticate()
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Info().Msg("Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":   redisClient.Ping(c.UserContext()).Err() == nil,
				"db":      pool.Ping(c.UserContext()) == nil,
				"youtube": youtube.IsConfigured(),
				"auth":    jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// The generation service calls back without credentials
	app.Post("/api/video/callback", callbackHandler.Handle)

	video := app.Group("/api/video", apiAuthMiddleware)
	video.Post("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), videoHandler.Generate)
	video.Get("/status/:taskId", videoHandler.Status)
	video.Get("/list", videoHandler.List)
	video.Get("/stream/:taskId", videoHandler.Stream)
	video.Get("/thumbnail/:taskId", videoHandler.Thumbnail)
	video.Post("/youtube/upload", rateLimiter.PublishLimit(cfg.RateLimit.PublishPerHour), videoHandler.PublishYouTube)

	app.Get("/ws/tasks/:taskId", apiAuthMiddleware, videoHandler.AuthorizeFeed, websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("taskId"))
	}))

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Str("provider", cfg.KIE.Provider).Str("queue_mode", cfg.Queue.Mode).Msg("Server starting")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("Server error")
		os.Exit(1)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
