package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	JWT       JWTConfig
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	KIE       KIEConfig
	Storage   StorageConfig
	Registry  RegistryConfig
	Queue     QueueConfig
	Pipeline  PipelineConfig
	Caption   CaptionConfig
	Worker    WorkerConfig
	YouTube   YouTubeConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
	// BaseURL is the public origin the generation service calls back to.
	BaseURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DSN string
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	GeneratePerHour int
	PublishPerHour  int
}

// KIEConfig configures the external video generation service.
type KIEConfig struct {
	APIKey   string
	BaseURL  string
	Provider string // veo | grok
	Timeout  time.Duration
	// TaskIDPaths lists dotted JSON paths tried in order when reading the task id
	// out of a create-task response.
	TaskIDPaths []string
}

type StorageConfig struct {
	Region          string
	Bucket          string
	Endpoint        string // optional S3-compatible endpoint (R2, MinIO)
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	UsePathStyle    bool
}

type RegistryConfig struct {
	TTL time.Duration
}

type QueueConfig struct {
	Name       string
	Mode       string // list | asynq
	PopTimeout time.Duration
	MaxRetry   int
}

type PipelineConfig struct {
	Mode             string // single | multi
	Variants         []string
	DefaultCaption   string
	TranscodeScript  string
	TranscodeTimeout time.Duration
	TranscoderURL    string // when set, transcoding is delegated to a remote service
	DownloadTimeout  time.Duration
	StorageTimeout   time.Duration // per object storage attempt
	Retries          int
	TempDir          string
}

type CaptionConfig struct {
	Backend  string // script | ollama
	Script   string
	Timeout  time.Duration
	Model    string
	Prompts  map[string]string
	Endpoint EndpointConfig
}

// EndpointConfig selects how the vision model endpoint is located.
type EndpointConfig struct {
	Strategy string // static | ec2
	Static   string
	EC2Tag   string
	Port     int
	Fallback string
}

type WorkerConfig struct {
	Concurrency int
}

type YouTubeConfig struct {
	ClientID     string
	ClientSecret string
	CategoryID   string
	Privacy      string
}

type MetricsConfig struct {
	Addr string
}

func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("POSTGRES_DSN")
	readSecret("KIE_API_KEY")
	readSecret("AWS_ACCESS_KEY_ID")
	readSecret("AWS_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")
	readSecret("YOUTUBE_CLIENT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("server.base_url", "APP_BASE_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("postgres.dsn", "POSTGRES_DSN")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("kie.api_key", "KIE_API_KEY")
	_ = viper.BindEnv("kie.base_url", "KIE_BASE_URL")
	_ = viper.BindEnv("kie.provider", "KIE_PROVIDER")
	_ = viper.BindEnv("storage.region", "AWS_REGION")
	_ = viper.BindEnv("storage.bucket", "AWS_S3_BUCKET")
	_ = viper.BindEnv("storage.endpoint", "S3_ENDPOINT")
	_ = viper.BindEnv("storage.access_key_id", "AWS_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	_ = viper.BindEnv("queue.name", "REDIS_QUEUE")
	_ = viper.BindEnv("queue.mode", "QUEUE_MODE")
	_ = viper.BindEnv("pipeline.transcode_script", "FFMPEG_SCRIPT")
	_ = viper.BindEnv("pipeline.transcoder_url", "TRANSCODER_URL")
	_ = viper.BindEnv("caption.backend", "CAPTION_BACKEND")
	_ = viper.BindEnv("caption.script", "CAPTION_SCRIPT")
	_ = viper.BindEnv("caption.endpoint.strategy", "CAPTION_ENDPOINT_STRATEGY")
	_ = viper.BindEnv("caption.endpoint.static", "OLLAMA_HOST")
	_ = viper.BindEnv("caption.endpoint.ec2_tag", "CAPTION_EC2_TAG")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("youtube.client_id", "YOUTUBE_CLIENT_ID")
	_ = viper.BindEnv("youtube.client_secret", "YOUTUBE_CLIENT_SECRET")
	_ = viper.BindEnv("metrics.addr", "METRICS_ADDR")

	setDefaults()

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	return fromViper(viper.GetViper()), nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.base_url", "https://auth.justic.store")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("postgres.dsn", "")
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("gateway.enabled", false)
	viper.SetDefault("ratelimit.generate_per_hour", 10)
	viper.SetDefault("ratelimit.publish_per_hour", 20)

	// Generation service defaults
	viper.SetDefault("kie.base_url", "https://api.kie.ai")
	viper.SetDefault("kie.provider", "veo")
	viper.SetDefault("kie.timeout", 120*time.Second)
	viper.SetDefault("kie.task_id_paths", []string{"data.taskId", "id"})

	// Storage defaults
	viper.SetDefault("storage.region", "ap-northeast-2")
	viper.SetDefault("storage.bucket", "videos")

	viper.SetDefault("registry.ttl", 24*time.Hour)

	viper.SetDefault("queue.name", "video_processing_jobs")
	viper.SetDefault("queue.mode", "list")
	viper.SetDefault("queue.pop_timeout", 5*time.Second)
	viper.SetDefault("queue.max_retry", 3)

	// Pipeline defaults
	viper.SetDefault("pipeline.mode", "multi")
	viper.SetDefault("pipeline.variants", []string{"v1", "v2"})
	viper.SetDefault("pipeline.default_caption", "편집된 영상입니다")
	viper.SetDefault("pipeline.transcode_script", "/opt/ai/scripts/run_ffmpeg_shorts.sh")
	viper.SetDefault("pipeline.transcode_timeout", 15*time.Minute)
	viper.SetDefault("pipeline.download_timeout", 300*time.Second)
	viper.SetDefault("pipeline.storage_timeout", 5*time.Minute)
	viper.SetDefault("pipeline.retries", 2)

	// Caption defaults
	viper.SetDefault("caption.backend", "ollama")
	viper.SetDefault("caption.script", "/opt/ai/worker/generate_caption.py")
	viper.SetDefault("caption.timeout", 600*time.Second)
	viper.SetDefault("caption.model", "qwen2.5vl")
	viper.SetDefault("caption.prompts", map[string]string{
		"v1": "이 이미지를 보고 영상 썸네일에 쓸 짧은 한국어 제목을 만들어라. 최대 15자. 설명 금지. 문장부호 금지.",
		"v2": "이 이미지를 보고 쇼츠 영상에 어울리는 강렬하고 눈에 띄는 한국어 제목을 만들어라. " +
			"반드시 순수 한글만 사용하라. 이모지, 특수문자, 전각문자, 영어, 숫자 절대 사용 금지. " +
			"공백은 허용한다. 최대 15자. 설명 금지. 문장부호 금지.",
	})
	viper.SetDefault("caption.endpoint.strategy", "ec2")
	viper.SetDefault("caption.endpoint.ec2_tag", "ai-worker-cpu")
	viper.SetDefault("caption.endpoint.port", 11434)
	viper.SetDefault("caption.endpoint.fallback", "http://localhost:11434")

	viper.SetDefault("worker.concurrency", 1)

	viper.SetDefault("youtube.category_id", "22")
	viper.SetDefault("youtube.privacy", "private")

	viper.SetDefault("metrics.addr", ":9091")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
			BaseURL:   strings.TrimRight(v.GetString("server.base_url"), "/"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Postgres: PostgresConfig{
			DSN: v.GetString("postgres.dsn"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
			PublishPerHour:  v.GetInt("ratelimit.publish_per_hour"),
		},
		KIE: KIEConfig{
			APIKey:      v.GetString("kie.api_key"),
			BaseURL:     v.GetString("kie.base_url"),
			Provider:    v.GetString("kie.provider"),
			Timeout:     v.GetDuration("kie.timeout"),
			TaskIDPaths: v.GetStringSlice("kie.task_id_paths"),
		},
		Storage: StorageConfig{
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			PublicURL:       v.GetString("storage.public_url"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Registry: RegistryConfig{
			TTL: v.GetDuration("registry.ttl"),
		},
		Queue: QueueConfig{
			Name:       v.GetString("queue.name"),
			Mode:       v.GetString("queue.mode"),
			PopTimeout: v.GetDuration("queue.pop_timeout"),
			MaxRetry:   v.GetInt("queue.max_retry"),
		},
		Pipeline: PipelineConfig{
			Mode:             v.GetString("pipeline.mode"),
			Variants:         v.GetStringSlice("pipeline.variants"),
			DefaultCaption:   v.GetString("pipeline.default_caption"),
			TranscodeScript:  v.GetString("pipeline.transcode_script"),
			TranscodeTimeout: v.GetDuration("pipeline.transcode_timeout"),
			TranscoderURL:    v.GetString("pipeline.transcoder_url"),
			DownloadTimeout:  v.GetDuration("pipeline.download_timeout"),
			StorageTimeout:   v.GetDuration("pipeline.storage_timeout"),
			Retries:          v.GetInt("pipeline.retries"),
			TempDir:          v.GetString("pipeline.temp_dir"),
		},
		Caption: CaptionConfig{
			Backend: v.GetString("caption.backend"),
			Script:  v.GetString("caption.script"),
			Timeout: v.GetDuration("caption.timeout"),
			Model:   v.GetString("caption.model"),
			Prompts: v.GetStringMapString("caption.prompts"),
			Endpoint: EndpointConfig{
				Strategy: v.GetString("caption.endpoint.strategy"),
				Static:   v.GetString("caption.endpoint.static"),
				EC2Tag:   v.GetString("caption.endpoint.ec2_tag"),
				Port:     v.GetInt("caption.endpoint.port"),
				Fallback: v.GetString("caption.endpoint.fallback"),
			},
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
		},
		YouTube: YouTubeConfig{
			ClientID:     v.GetString("youtube.client_id"),
			ClientSecret: v.GetString("youtube.client_secret"),
			CategoryID:   v.GetString("youtube.category_id"),
			Privacy:      v.GetString("youtube.privacy"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
	}
}
