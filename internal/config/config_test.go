package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "video_processing_jobs", cfg.Queue.Name)
	assert.Equal(t, "list", cfg.Queue.Mode)
	assert.Equal(t, 5*time.Second, cfg.Queue.PopTimeout)
	assert.Equal(t, []string{"v1", "v2"}, cfg.Pipeline.Variants)
	assert.Equal(t, 15*time.Minute, cfg.Pipeline.TranscodeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.StorageTimeout)
	assert.Equal(t, "편집된 영상입니다", cfg.Pipeline.DefaultCaption)
	assert.Equal(t, 24*time.Hour, cfg.Registry.TTL)
	assert.Equal(t, []string{"data.taskId", "id"}, cfg.KIE.TaskIDPaths)
	assert.Equal(t, 120*time.Second, cfg.KIE.Timeout)
	assert.Equal(t, 11434, cfg.Caption.Endpoint.Port)
	assert.Equal(t, "http://localhost:11434", cfg.Caption.Endpoint.Fallback)
	assert.Contains(t, cfg.Caption.Prompts, "v1")
	assert.Contains(t, cfg.Caption.Prompts, "v2")
	assert.Equal(t, "22", cfg.YouTube.CategoryID)
	assert.Equal(t, "private", cfg.YouTube.Privacy)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KIE_PROVIDER", "grok")
	t.Setenv("QUEUE_MODE", "asynq")
	t.Setenv("APP_BASE_URL", "https://api.example.com/")
	t.Setenv("OLLAMA_HOST", "http://10.0.0.5:11434")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "grok", cfg.KIE.Provider)
	assert.Equal(t, "asynq", cfg.Queue.Mode)
	assert.Equal(t, "https://api.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Caption.Endpoint.Static)
}

func TestLoad_SecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kie_key")
	require.NoError(t, os.WriteFile(path, []byte("file-secret\n"), 0o600))

	t.Setenv("KIE_API_KEY", "")
	t.Setenv("KIE_API_KEY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file-secret", cfg.KIE.APIKey)
}

func TestReadSecret_DirectValueWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	t.Setenv("YOUTUBE_CLIENT_SECRET", "direct")
	t.Setenv("YOUTUBE_CLIENT_SECRET_FILE", path)

	readSecret("YOUTUBE_CLIENT_SECRET")
	assert.Equal(t, "direct", os.Getenv("YOUTUBE_CLIENT_SECRET"))
}

func TestFromViper_StorageAndPipeline(t *testing.T) {
	v := viper.New()
	v.Set("storage.bucket", "videos")
	v.Set("storage.endpoint", "http://minio:9000")
	v.Set("storage.use_path_style", true)
	v.Set("pipeline.mode", "single")
	v.Set("pipeline.variants", []string{"v1"})

	cfg := fromViper(v)
	assert.Equal(t, "videos", cfg.Storage.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.Storage.Endpoint)
	assert.True(t, cfg.Storage.UsePathStyle)
	assert.Equal(t, "single", cfg.Pipeline.Mode)
	assert.Equal(t, []string{"v1"}, cfg.Pipeline.Variants)
}
