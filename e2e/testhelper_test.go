package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/justic/shortsgen/internal/artifact"
	"github.com/justic/shortsgen/internal/auth"
	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/config"
	"github.com/justic/shortsgen/internal/handler"
	"github.com/justic/shortsgen/internal/middleware"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/queue"
	"github.com/justic/shortsgen/internal/registry"
	"github.com/justic/shortsgen/internal/service"
	"github.com/justic/shortsgen/internal/worker"
	ws "github.com/justic/shortsgen/internal/websocket"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testUserID    = "test-user-123"
	otherUserID   = "other-user-456"
	rawVideo      = "raw-video-bytes"
)

// testApp holds the HTTP app and the in-process collaborators behind it
type testApp struct {
	app       *fiber.App
	redis     *miniredis.Miniredis
	registry  *registry.Registry
	queue     *queue.RedisQueue
	storage   *memStorage
	catalogue *memCatalogue
	publisher *fakePublisher
	worker    *worker.PipelineWorker
	kie       *kieStub
	mediaURL  string
}

// kieStub plays the generation service: it hands out the next task id or
// fails with the configured status.
type kieStub struct {
	mu       sync.Mutex
	nextID   string
	status   int
	requests []client.CreateTaskRequest
}

func (k *kieStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var req client.CreateTaskRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	k.requests = append(k.requests, req)

	if k.status != 0 {
		w.WriteHeader(k.status)
		_, _ = w.Write([]byte(`{"code":500,"msg":"internal error"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code": 200,
		"data": map[string]string{"taskId": k.nextID},
	})
}

func (k *kieStub) set(nextID string, status int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.nextID = nextID
	k.status = status
}

// setupApp wires the API the same way cmd/server does, with Redis replaced by
// miniredis, object storage and Postgres by in-memory fakes, and the external
// services by httptest servers.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	kie := &kieStub{nextID: "abc123"}
	kieServer := httptest.NewServer(kie)
	t.Cleanup(kieServer.Close)

	mediaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".mp4") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte(rawVideo))
	}))
	t.Cleanup(mediaServer.Close)

	logger := zerolog.Nop()
	validate := validator.New()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	generator, err := client.NewKIEClient(&config.KIEConfig{
		APIKey:   "kie-key",
		BaseURL:  kieServer.URL,
		Provider: "veo",
		Timeout:  5 * time.Second,
	}, "https://api.example.com", logger)
	require.NoError(t, err)

	tasks := registry.New(redisClient, time.Hour)
	jobs := queue.NewRedisQueue(redisClient, queue.DefaultName)
	storage := newMemStorage()
	catalogue := newMemCatalogue()
	publisher := &fakePublisher{id: "yt-42"}
	scheme := artifact.NewScheme(nil)

	generationService := service.NewGenerationService(generator, tasks, "veo", logger)
	taskService := service.NewTaskService(tasks)
	videoService := service.NewVideoService(storage, scheme, catalogue, publisher, logger)
	callbackService := service.NewCallbackService(
		tasks,
		client.NewHTTPDownloader(5*time.Second, 0),
		fakeThumbnailer{},
		storage,
		catalogue,
		jobs,
		hub,
		service.CallbackOptions{
			Variants: scheme.Variants(),
			LogType:  model.LogTypeVideoGenerate,
			TempDir:  t.TempDir(),
		},
		logger,
	)

	pipeline := worker.NewPipelineWorker(jobs, storage,
		fakeCaptioner{captions: map[string]string{"v1": "caption one"}},
		fakeTranscoder{},
		worker.PipelineOptions{
			Variants:       scheme.Variants(),
			DefaultCaption: "default caption",
			PopTimeout:     50 * time.Millisecond,
			TempDir:        t.TempDir(),
		}, logger)

	videoHandler := handler.NewVideoHandler(generationService, taskService, videoService, validate)
	callbackHandler := handler.NewCallbackHandler(callbackService, logger)
	authn := auth.NewAuthenticator(nil, testJWTSecret)
	authHandler := handler.NewAuthHandler(authn)

	authMiddleware := middleware.NewAuthMiddleware(authn, logger)
	rateLimiter := middleware.NewRateLimiter(redisClient, logger)

	app := fiber.New()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis": redisClient.Ping(c.UserContext()).Err() == nil,
				"auth":  true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	app.Post("/api/video/callback", callbackHandler.Handle)

	video := app.Group("/api/video", authMiddleware.Authenticate())
	video.Post("/generate", rateLimiter.GenerateLimit(10000), videoHandler.Generate)
	video.Get("/status/:taskId", videoHandler.Status)
	video.Get("/list", videoHandler.List)
	video.Get("/stream/:taskId", videoHandler.Stream)
	video.Get("/thumbnail/:taskId", videoHandler.Thumbnail)
	video.Post("/youtube/upload", rateLimiter.PublishLimit(10000), videoHandler.PublishYouTube)

	return &testApp{
		app:       app,
		redis:     mr,
		registry:  tasks,
		queue:     jobs,
		storage:   storage,
		catalogue: catalogue,
		publisher: publisher,
		worker:    pipeline,
		kie:       kie,
		mediaURL:  mediaServer.URL,
	}
}

// callbackBody builds a veo-style completion notice.
func (ta *testApp) callbackBody(taskID string) string {
	return `{"code":200,"data":{"taskId":"` + taskID + `","info":{"resultUrls":["` + ta.mediaURL + `/videos/` + taskID + `.mp4"]}}}`
}

// runNextJob pops one job and runs it through the pipeline worker.
func (ta *testApp) runNextJob(t *testing.T) {
	t.Helper()
	raw, err := ta.queue.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	require.NoError(t, ta.worker.HandleMessage(context.Background(), raw))
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken(userID, userID+"@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as the default test user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	return doAuthRequestAs(t, app, testUserID, method, path, body)
}

func doAuthRequestAs(t *testing.T, app *fiber.App, userID, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t, userID),
	})
	require.NoError(t, err)
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &result), "body: %s", body)
	return result
}

// errorCode extracts error.code from an error envelope.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := errObj["code"].(string)
	return code
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return "mem://" + key, nil
}

func (m *memStorage) UploadFile(ctx context.Context, key, path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return m.Upload(ctx, key, bytes.NewReader(data), contentType)
}

func (m *memStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, client.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) DownloadFile(ctx context.Context, key, path string) error {
	body, err := m.Download(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (m *memStorage) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) GetSignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "mem://" + key + "?signed", nil
}

func (m *memStorage) GetPublicURL(key string) string { return "mem://" + key }

func (m *memStorage) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return string(data), ok
}

type memCatalogue struct {
	mu     sync.Mutex
	videos map[string]*model.FinalVideo
	logs   []model.OperationLog
}

func newMemCatalogue() *memCatalogue {
	return &memCatalogue{videos: map[string]*model.FinalVideo{}}
}

func (c *memCatalogue) InsertFinalVideo(_ context.Context, v *model.FinalVideo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *v
	c.videos[v.VideoKey] = &cp
	return nil
}

func (c *memCatalogue) GetFinalVideo(_ context.Context, key string) (*model.FinalVideo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.videos[key]
	if !ok {
		return nil, model.ErrVideoNotFound
	}
	return v, nil
}

func (c *memCatalogue) MarkYouTubeUploaded(_ context.Context, key, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.videos[key]
	if !ok {
		return model.ErrVideoNotFound
	}
	now := time.Now()
	v.YouTubeVideoID = &id
	v.YouTubeUploadedAt = &now
	return nil
}

func (c *memCatalogue) InsertOperationLog(_ context.Context, l *model.OperationLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, *l)
	return nil
}

func (c *memCatalogue) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.videos)
}

type fakeThumbnailer struct{}

func (fakeThumbnailer) Extract(_ context.Context, _, outPath string) error {
	return os.WriteFile(outPath, []byte("jpeg"), 0o644)
}

type fakeCaptioner struct {
	captions map[string]string
}

func (f fakeCaptioner) Caption(_ context.Context, _ string, variants []string) (map[string]string, error) {
	out := map[string]string{}
	for _, v := range variants {
		if c, ok := f.captions[v]; ok {
			out[v] = c
		}
	}
	return out, nil
}

// fakeTranscoder writes the caption it was given as the output video.
type fakeTranscoder struct{}

func (fakeTranscoder) Transcode(_ context.Context, inPath, outPath, caption string) error {
	if _, err := os.Stat(inPath); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(caption), 0o644)
}

type fakePublisher struct {
	mu   sync.Mutex
	id   string
	body string
	meta client.VideoMeta
}

func (f *fakePublisher) Publish(_ context.Context, _ string, media io.Reader, meta client.VideoMeta) (string, error) {
	data, err := io.ReadAll(media)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = string(data)
	f.meta = meta
	return f.id, nil
}
