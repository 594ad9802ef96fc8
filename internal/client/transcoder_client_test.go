package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscoderClient_Transcode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcode", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "바다 고양이", r.FormValue("caption"))

		f, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "raw", string(data))
		}
		_, _ = w.Write([]byte("rendered"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.mp4")
	out := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(in, []byte("raw"), 0o644))

	c := NewTranscoderClient(srv.URL, time.Second)
	require.NoError(t, c.Transcode(context.Background(), in, out, "바다 고양이"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "rendered", string(data))
}

func TestTranscoderClient_Transcode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(in, []byte("raw"), 0o644))

	c := NewTranscoderClient(srv.URL, time.Second)
	err := c.Transcode(context.Background(), in, filepath.Join(dir, "out.mp4"), "x")
	assert.ErrorContains(t, err, "status 502")
}
