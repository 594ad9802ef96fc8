package media

import (
	"context"
	"fmt"
	"time"
)

const defaultThumbnailTimeout = time.Minute

// Thumbnailer cuts a still frame out of a video.
type Thumbnailer interface {
	Extract(ctx context.Context, videoPath, outPath string) error
}

// FFmpegThumbnailer grabs the frame one second into the video.
type FFmpegThumbnailer struct {
	FFmpeg  string
	Runner  Runner
	Timeout time.Duration
}

func NewFFmpegThumbnailer(runner Runner) *FFmpegThumbnailer {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpegThumbnailer{FFmpeg: "ffmpeg", Runner: runner, Timeout: defaultThumbnailTimeout}
}

// Extract kills ffmpeg once Timeout elapses, whatever deadline ctx carries.
func (t *FFmpegThumbnailer) Extract(ctx context.Context, videoPath, outPath string) error {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultThumbnailTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := t.Runner.Run(ctx, Command{
		Name: t.FFmpeg,
		Args: []string{"-y", "-i", videoPath, "-ss", "00:00:01", "-vframes", "1", outPath},
	})
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	return nil
}
