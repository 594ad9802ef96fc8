package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/config"
	"github.com/justic/shortsgen/internal/model"
)

// VideoGenerator submits prompts to an external text-to-video service.
type VideoGenerator interface {
	CreateTask(ctx context.Context, prompt string) (string, error)
}

// Provider describes one generation backend exposed by KIE.
type Provider struct {
	Name         string
	Path         string
	Model        string
	AspectRatio  string
	CallbackPath string
}

// Providers are the supported generation backends, keyed by name.
var Providers = map[string]Provider{
	"veo": {
		Name:         "veo",
		Path:         "/api/v1/veo/generate",
		Model:        "veo3_fast",
		AspectRatio:  "9:16",
		CallbackPath: "/api/video/callback",
	},
	"grok": {
		Name:         "grok",
		Path:         "/api/v1/jobs/createTask",
		Model:        "grok-imagine",
		CallbackPath: "/api/video/callback",
	},
}

// DefaultTaskIDPaths are tried in order when reading a create-task response.
var DefaultTaskIDPaths = []string{"data.taskId", "id"}

// CreateTaskRequest is the body sent to the generation service
type CreateTaskRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	CallBackURL string `json:"callBackUrl"`
}

// KIEClient implements VideoGenerator for the KIE API
type KIEClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	provider    Provider
	callbackURL string
	idPaths     []string
	logger      zerolog.Logger
}

// NewKIEClient creates a new KIE API client. publicBaseURL is the origin the
// service calls back to once a video is ready.
func NewKIEClient(cfg *config.KIEConfig, publicBaseURL string, logger zerolog.Logger) (*KIEClient, error) {
	provider, ok := Providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	paths := cfg.TaskIDPaths
	if len(paths) == 0 {
		paths = DefaultTaskIDPaths
	}

	return &KIEClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		provider:    provider,
		callbackURL: strings.TrimRight(publicBaseURL, "/") + provider.CallbackPath,
		idPaths:     paths,
		logger:      logger.With().Str("component", "kie").Str("provider", provider.Name).Logger(),
	}, nil
}

// IsConfigured returns true if the client has an API key
func (c *KIEClient) IsConfigured() bool {
	return c.apiKey != ""
}

// CallbackURL is the completion URL sent with every task
func (c *KIEClient) CallbackURL() string {
	return c.callbackURL
}

// CreateTask submits a prompt and returns the external task id
func (c *KIEClient) CreateTask(ctx context.Context, prompt string) (string, error) {
	body := &CreateTaskRequest{
		Prompt:      prompt,
		Model:       c.provider.Model,
		AspectRatio: c.provider.AspectRatio,
		CallBackURL: c.callbackURL,
	}

	var result map[string]interface{}
	if err := c.post(ctx, c.provider.Path, body, &result); err != nil {
		return "", err
	}

	taskID := extractTaskID(result, c.idPaths)
	if taskID == "" {
		raw, _ := json.Marshal(result)
		return "", &model.UpstreamRequestError{Op: "create task", Body: "no task id in response: " + string(raw)}
	}
	return taskID, nil
}

// post sends a POST request with JSON body
func (c *KIEClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *KIEClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("→ request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", req.URL.String()).Msg("request failed")
		return &model.UpstreamRequestError{Op: "create task", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.UpstreamRequestError{Op: "create task", Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("← response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.UpstreamRequestError{Op: "create task", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &model.UpstreamRequestError{Op: "create task", Body: string(respBody), Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	return nil
}

// extractTaskID walks each dotted path and returns the first non-empty value.
func extractTaskID(doc map[string]interface{}, paths []string) string {
	for _, path := range paths {
		var cur interface{} = doc
		for _, part := range strings.Split(path, ".") {
			m, ok := cur.(map[string]interface{})
			if !ok {
				cur = nil
				break
			}
			cur = m[part]
		}
		switch v := cur.(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
