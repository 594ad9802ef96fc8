package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Downloader fetches a remote file to local disk
type Downloader interface {
	Download(ctx context.Context, url, path string) error
}

// HTTPDownloader downloads over HTTP with a bounded timeout and retry budget.
// Client errors (4xx) are not retried.
type HTTPDownloader struct {
	httpClient *http.Client
	retries    uint64
	interval   time.Duration
}

// NewHTTPDownloader creates a downloader. retries counts extra attempts after
// the first one.
func NewHTTPDownloader(timeout time.Duration, retries int) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &HTTPDownloader{
		httpClient: &http.Client{Timeout: timeout},
		retries:    uint64(retries),
		interval:   time.Second,
	}
}

// Download writes the body of url to path
func (d *HTTPDownloader) Download(ctx context.Context, url, path string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.interval
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		return d.fetch(ctx, url, path)
	}, backoff.WithContext(backoff.WithMaxRetries(b, d.retries), ctx))
}

func (d *HTTPDownloader) fetch(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(fmt.Errorf("download %s: status %d", url, resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create %s: %w", path, err))
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
