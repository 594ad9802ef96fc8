package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return registry.New(rdb, time.Hour)
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return "", m.failPut
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
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
	data, _ := io.ReadAll(body)
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

func (m *memStorage) keys() []string {
	keys, _ := m.List(context.Background(), "")
	return keys
}

type fakeDownloader struct {
	body  string
	err   error
	calls int
}

func (f *fakeDownloader) Download(_ context.Context, _ string, path string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte(f.body), 0o644)
}

type fakeThumbnailer struct{ err error }

func (f *fakeThumbnailer) Extract(_ context.Context, _, outPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("jpeg"), 0o644)
}

type memCatalogue struct {
	mu       sync.Mutex
	videos   map[string]*model.FinalVideo
	logs     []model.OperationLog
	failLogs bool
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
	if c.failLogs {
		return errors.New("db down")
	}
	c.logs = append(c.logs, *l)
	return nil
}

type memProducer struct {
	mu   sync.Mutex
	jobs []model.Job
	err  error
}

func (p *memProducer) Push(_ context.Context, job *model.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, *job)
	return nil
}

type fakeGenerator struct {
	taskID string
	err    error
	prompt string
}

func (f *fakeGenerator) CreateTask(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.taskID, f.err
}

type fakePublisher struct {
	id   string
	err  error
	body string
	meta client.VideoMeta
}

func (f *fakePublisher) Publish(_ context.Context, _ string, media io.Reader, meta client.VideoMeta) (string, error) {
	data, _ := io.ReadAll(media)
	f.body = string(data)
	f.meta = meta
	return f.id, f.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []model.Status
}

func (r *recordingNotifier) BroadcastStatus(_ string, status model.Status, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}
