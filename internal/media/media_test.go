package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and delegates outcomes to run.
type fakeRunner struct {
	calls []Command
	run   func(ctx context.Context, cmd Command) (Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	f.calls = append(f.calls, cmd)
	if f.run == nil {
		return Result{}, nil
	}
	return f.run(ctx, cmd)
}

type fakeDescriber struct {
	replies map[string]string
	err     error
	images  []string
}

func (f *fakeDescriber) DescribeImage(_ context.Context, prompt, imageB64 string) (string, error) {
	f.images = append(f.images, imageB64)
	if f.err != nil {
		return "", f.err
	}
	return f.replies[prompt], nil
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "바다 위 고양이", Sanitize("  \"바다 위 고양이.\"\n"))
	assert.Equal(t, "제목", Sanitize("**제목**: "))
	assert.Equal(t, "abc", Sanitize("[a](b)#c"))
	// decomposed hangul is recomposed
	assert.Equal(t, "\uD55C", Sanitize("\u1112\u1161\u11AB"))
	assert.Empty(t, Sanitize("...\n"))
}

func TestFillDefaults(t *testing.T) {
	out, degraded := FillDefaults(map[string]string{"v1": "고양이", "v2": "  "}, []string{"v1", "v2"}, "편집된 영상")
	assert.Equal(t, map[string]string{"v1": "고양이", "v2": "편집된 영상"}, out)
	assert.Equal(t, []string{"v2"}, degraded)
}

func TestFFmpegThumbnailer_Args(t *testing.T) {
	runner := &fakeRunner{}
	th := NewFFmpegThumbnailer(runner)
	require.NoError(t, th.Extract(context.Background(), "/tmp/in.mp4", "/tmp/out.jpg"))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "ffmpeg", runner.calls[0].Name)
	assert.Equal(t, []string{"-y", "-i", "/tmp/in.mp4", "-ss", "00:00:01", "-vframes", "1", "/tmp/out.jpg"}, runner.calls[0].Args)
}

func TestFFmpegThumbnailer_BoundsContext(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, _ Command) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	th := NewFFmpegThumbnailer(runner)
	th.Timeout = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- th.Extract(context.WithoutCancel(context.Background()), "/tmp/in.mp4", "/tmp/out.jpg") }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("thumbnail extraction was not bounded")
	}
}

func TestScriptCaptioner_JSON(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, Command) (Result, error) {
		return Result{Stdout: "loading model\n{\"v1\": \"바다 고양이.\", \"v2\": \"\"}\n"}, nil
	}}
	c := NewScriptCaptioner("/opt/ai/worker/generate_caption.py", "http://3.34.1.2:11434", time.Second, runner)

	out, err := c.Caption(context.Background(), "/tmp/in.mp4", []string{"v1", "v2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"v1": "바다 고양이"}, out)

	call := runner.calls[0]
	assert.Equal(t, "python3", call.Name)
	assert.Equal(t, []string{"/opt/ai/worker/generate_caption.py", "/tmp/in.mp4"}, call.Args)
	assert.Contains(t, call.Env, "OLLAMA_HOST=http://3.34.1.2:11434")
	assert.Contains(t, call.Env, "CAPTION_VARIANT=v1,v2")
}

func TestScriptCaptioner_PlainText(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, Command) (Result, error) {
		return Result{Stdout: "파도 타는 고양이\n"}, nil
	}}
	c := NewScriptCaptioner("gen.py", "", time.Second, runner)

	out, err := c.Caption(context.Background(), "/tmp/in.mp4", []string{"v1", "v2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"v1": "파도 타는 고양이", "v2": "파도 타는 고양이"}, out)
}

func TestScriptCaptioner_Failure(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, Command) (Result, error) {
		return Result{ExitCode: 1}, &CommandError{Command: "python3", ExitCode: 1, Err: errors.New("exit 1")}
	}}
	c := NewScriptCaptioner("gen.py", "", time.Second, runner)

	_, err := c.Caption(context.Background(), "/tmp/in.mp4", []string{"v1"})
	var cmdErr *CommandError
	assert.ErrorAs(t, err, &cmdErr)
}

func TestScriptCaptioner_Timeout(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, _ Command) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	c := NewScriptCaptioner("gen.py", "", 10*time.Millisecond, runner)

	_, err := c.Caption(context.Background(), "/tmp/in.mp4", []string{"v1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOllamaCaptioner(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "in.mp4")

	runner := &fakeRunner{run: func(_ context.Context, cmd Command) (Result, error) {
		frame := cmd.Args[len(cmd.Args)-1]
		return Result{}, os.WriteFile(frame, []byte("jpeg"), 0o644)
	}}
	model := &fakeDescriber{replies: map[string]string{"p1": "\"고양이\"", "p2": ""}}
	c := NewOllamaCaptioner(model, map[string]string{"v1": "p1", "v2": "p2"}, time.Second, runner, zerolog.Nop())

	out, err := c.Caption(context.Background(), video, []string{"v1", "v2", "v3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"v1": "고양이"}, out)

	assert.Contains(t, runner.calls[0].Args, "scale=320:-1")
	assert.Equal(t, []string{"anBlZw==", "anBlZw=="}, model.images)

	_, statErr := os.Stat(filepath.Join(dir, "caption_frame.jpg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestScriptTranscoder_Args(t *testing.T) {
	runner := &fakeRunner{}
	tr := NewScriptTranscoder("/opt/ai/scripts/run_ffmpeg_shorts.sh", time.Second, runner)
	require.NoError(t, tr.Transcode(context.Background(), "in.mp4", "out.mp4", "고양이"))

	assert.Equal(t, "/opt/ai/scripts/run_ffmpeg_shorts.sh", runner.calls[0].Name)
	assert.Equal(t, []string{"in.mp4", "out.mp4", "", "", "고양이"}, runner.calls[0].Args)
}

func TestScriptTranscoder_HardTimeout(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, _ Command) (Result, error) {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(time.Second):
			return Result{}, nil
		}
	}}
	tr := NewScriptTranscoder("run.sh", 10*time.Millisecond, runner)

	err := tr.Transcode(context.Background(), "in.mp4", "out.mp4", "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommandError_Message(t *testing.T) {
	err := &CommandError{Command: "ffmpeg -i x", ExitCode: 1, Stderr: "no such file\n"}
	assert.Equal(t, `command "ffmpeg -i x" failed (exit=1): no such file`, err.Error())
}
