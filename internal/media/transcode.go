package media

import (
	"context"
	"fmt"
	"time"
)

// Transcoder renders the final short with the caption burned in.
type Transcoder interface {
	Transcode(ctx context.Context, inPath, outPath, caption string) error
}

// ScriptTranscoder runs the shell pipeline as
// script <in> <out> <tts wav> <subtitles> <caption>; the audio and subtitle
// slots are always empty.
type ScriptTranscoder struct {
	Script  string
	Timeout time.Duration
	Runner  Runner
}

func NewScriptTranscoder(script string, timeout time.Duration, runner Runner) *ScriptTranscoder {
	if runner == nil {
		runner = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &ScriptTranscoder{Script: script, Timeout: timeout, Runner: runner}
}

func (t *ScriptTranscoder) Transcode(ctx context.Context, inPath, outPath, caption string) error {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	if _, err := t.Runner.Run(ctx, Command{
		Name: t.Script,
		Args: []string{inPath, outPath, "", "", caption},
	}); err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	return nil
}
