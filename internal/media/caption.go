package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Captioner produces one caption per requested variant. Variants it could
// not caption are left out of the result; callers substitute a default.
type Captioner interface {
	Caption(ctx context.Context, videoPath string, variants []string) (map[string]string, error)
}

// ScriptCaptioner runs the caption script as a local process. The script
// prints either a JSON object keyed by variant or a single caption line.
type ScriptCaptioner struct {
	Python   string
	Script   string
	Endpoint string
	Timeout  time.Duration
	Runner   Runner
}

func NewScriptCaptioner(script, endpoint string, timeout time.Duration, runner Runner) *ScriptCaptioner {
	if runner == nil {
		runner = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &ScriptCaptioner{
		Python:   "python3",
		Script:   script,
		Endpoint: endpoint,
		Timeout:  timeout,
		Runner:   runner,
	}
}

func (c *ScriptCaptioner) Caption(ctx context.Context, videoPath string, variants []string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	res, err := c.Runner.Run(ctx, Command{
		Name: c.Python,
		Args: []string{c.Script, videoPath},
		Env: []string{
			"OLLAMA_HOST=" + c.Endpoint,
			"CAPTION_VARIANT=" + strings.Join(variants, ","),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("caption script: %w", err)
	}

	return parseCaptionOutput(res.Stdout, variants), nil
}

// parseCaptionOutput accepts the last non-empty stdout line, either a JSON
// object or plain text that applies to every variant.
func parseCaptionOutput(stdout string, variants []string) map[string]string {
	var line string
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			line = l
			break
		}
	}

	out := make(map[string]string, len(variants))
	if line == "" {
		return out
	}

	var byVariant map[string]string
	if strings.HasPrefix(line, "{") && json.Unmarshal([]byte(line), &byVariant) == nil {
		for _, v := range variants {
			if s := Sanitize(byVariant[v]); s != "" {
				out[v] = s
			}
		}
		return out
	}

	if s := Sanitize(line); s != "" {
		for _, v := range variants {
			out[v] = s
		}
	}
	return out
}

// ImageDescriber is a vision model that answers a prompt about an image.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, prompt, imageB64 string) (string, error)
}

// OllamaCaptioner extracts one small frame and asks the vision model for a
// title once per variant prompt.
type OllamaCaptioner struct {
	FFmpeg  string
	Runner  Runner
	Model   ImageDescriber
	Prompts map[string]string
	Timeout time.Duration
	Logger  zerolog.Logger
}

func NewOllamaCaptioner(model ImageDescriber, prompts map[string]string, timeout time.Duration, runner Runner, logger zerolog.Logger) *OllamaCaptioner {
	if runner == nil {
		runner = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &OllamaCaptioner{
		FFmpeg:  "ffmpeg",
		Runner:  runner,
		Model:   model,
		Prompts: prompts,
		Timeout: timeout,
		Logger:  logger,
	}
}

func (c *OllamaCaptioner) Caption(ctx context.Context, videoPath string, variants []string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	frame := filepath.Join(filepath.Dir(videoPath), "caption_frame.jpg")
	defer os.Remove(frame)

	if _, err := c.Runner.Run(ctx, Command{
		Name: c.FFmpeg,
		Args: []string{"-y", "-ss", "00:00:01", "-i", videoPath, "-vf", "scale=320:-1", "-frames:v", "1", "-q:v", "10", frame},
	}); err != nil {
		return nil, fmt.Errorf("caption frame: %w", err)
	}

	img, err := os.ReadFile(frame)
	if err != nil {
		return nil, fmt.Errorf("caption frame: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(img)

	out := make(map[string]string, len(variants))
	for _, v := range variants {
		prompt, ok := c.Prompts[v]
		if !ok {
			c.Logger.Warn().Str("variant", v).Msg("no caption prompt for variant")
			continue
		}
		text, err := c.Model.DescribeImage(ctx, prompt, b64)
		if err != nil {
			c.Logger.Warn().Err(err).Str("variant", v).Msg("caption request failed")
			continue
		}
		if s := Sanitize(text); s != "" {
			out[v] = s
		}
	}
	return out, nil
}
