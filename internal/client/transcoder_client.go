package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TranscoderClient delegates the shorts transcode to a media microservice.
// It posts the source file and caption and stores the returned video.
type TranscoderClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewTranscoderClient creates a new transcoding client
func NewTranscoderClient(baseURL string, timeout time.Duration) *TranscoderClient {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &TranscoderClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Transcode uploads inPath with caption and writes the rendered video to outPath
func (c *TranscoderClient) Transcode(ctx context.Context, inPath, outPath, caption string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", inPath, err)
	}
	defer in.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if err := mw.WriteField("caption", caption); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("file", filepath.Base(inPath))
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, in); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcode", pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("transcoder error (status %d): %s", resp.StatusCode, string(body))
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return out.Close()
}

// HealthCheck checks if the transcoder is available
func (c *TranscoderClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcoder unhealthy: status %d", resp.StatusCode)
	}

	return nil
}
