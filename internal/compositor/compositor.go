// Package compositor drives ffmpeg to extract audio, burn subtitle documents
// into video, and pull still frames for carousel fallback.
//
// Every operation owns its temporary files exclusively: inputs are written to
// a scoped directory that is removed on both success and failure, and results
// cross the component boundary as bytes, never as paths. External tool
// failures surface as provider errors carrying the tool's diagnostic output;
// retrying is the caller's concern.
package compositor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"reelay/internal/services"
	"reelay/internal/subtitle"
)

// Compositor wraps the ffmpeg and ffprobe binaries.
type Compositor struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
	runner  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New constructs a compositor. Empty binary names select the defaults on
// PATH.
func New(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Compositor {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary, logger: logger}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Compositor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.runner = runner
}

// ExtractAudio strips the video stream and returns an MP3-encoded audio
// track.
func (c *Compositor) ExtractAudio(ctx context.Context, video []byte) ([]byte, error) {
	dir, cleanup, err := c.workspace()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	inputPath := filepath.Join(dir, "input.mp4")
	outputPath := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(inputPath, video, 0o644); err != nil {
		return nil, services.Wrap(services.ErrProvider, "compositor", "extract audio", "write input", err)
	}

	c.logger.Info("extracting audio", "input_bytes", len(video))
	if _, err := c.run(ctx, c.ffmpeg, buildExtractAudioArgs(inputPath, outputPath)...); err != nil {
		return nil, services.Wrap(services.ErrProvider, "compositor", "extract audio", "", err)
	}

	audio, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "compositor", "extract audio", "read output", err)
	}
	c.logger.Info("audio extracted", "audio_bytes", len(audio))
	return audio, nil
}

// BurnSubtitles re-encodes the video with the subtitle document rendered into
// the frames. The audio stream is copied unmodified.
func (c *Compositor) BurnSubtitles(ctx context.Context, video []byte, document string, format subtitle.Format, style subtitle.StyleProfile) ([]byte, error) {
	if strings.TrimSpace(document) == "" {
		return nil, services.Wrap(services.ErrValidation, "compositor", "burn subtitles", "empty subtitle document", nil)
	}

	dir, cleanup, err := c.workspace()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	inputPath := filepath.Join(dir, "input.mp4")
	outputPath := filepath.Join(dir, "subtitled.mp4")
	subtitlePath := filepath.Join(dir, "captions."+string(format))

	if err := os.WriteFile(inputPath, video, 0o644); err != nil {
		return nil, services.Wrap(services.ErrProvider, "compositor", "burn subtitles", "write input", err)
	}
	if err := os.WriteFile(subtitlePath, []byte(document), 0o644); err != nil {
		return nil, services.Wrap(services.ErrProvider, "compositor", "burn subtitles", "write subtitle file", err)
	}

	c.logger.Info("burning subtitles",
		"format", string(format),
		"style", style.Name,
		"input_bytes", len(video))
	if _, err := c.run(ctx, c.ffmpeg, buildBurnArgs(inputPath, subtitlePath, outputPath, format, style)...); err != nil {
		return nil, services.Wrap(services.ErrProvider, "compositor", "burn subtitles", "", err)
	}

	out, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "compositor", "burn subtitles", "read output", err)
	}
	c.logger.Info("subtitles burned", "output_bytes", len(out))
	return out, nil
}

// ExtractFrames probes the video duration and extracts frameCount square
// stills evenly spaced inside the middle 80% of the runtime (the midpoint
// when frameCount is 1).
func (c *Compositor) ExtractFrames(ctx context.Context, video []byte, frameCount int) ([][]byte, error) {
	if frameCount <= 0 {
		return nil, services.Wrap(services.ErrValidation, "compositor", "extract frames", "frame count must be positive", nil)
	}

	dir, cleanup, err := c.workspace()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	inputPath := filepath.Join(dir, "input.mp4")
	if err := os.WriteFile(inputPath, video, 0o644); err != nil {
		return nil, services.Wrap(services.ErrProvider, "compositor", "extract frames", "write input", err)
	}

	duration, err := c.probeDuration(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "compositor", "extract frames", "video has no measurable duration", nil)
	}

	timestamps := FrameTimestamps(duration, frameCount)
	frames := make([][]byte, 0, len(timestamps))
	for i, ts := range timestamps {
		framePath := filepath.Join(dir, fmt.Sprintf("frame_%02d.jpg", i))
		if _, err := c.run(ctx, c.ffmpeg, buildFrameArgs(inputPath, ts, framePath)...); err != nil {
			return nil, services.Wrap(services.ErrProvider, "compositor", "extract frames", fmt.Sprintf("frame %d at %.2fs", i, ts), err)
		}
		frame, err := os.ReadFile(framePath)
		if err != nil {
			return nil, services.Wrap(services.ErrProvider, "compositor", "extract frames", "read frame", err)
		}
		frames = append(frames, frame)
	}
	c.logger.Info("frames extracted", "count", len(frames), "duration", duration)
	return frames, nil
}

// FrameTimestamps computes the capture offsets for frame extraction: evenly
// spaced inside [10%, 90%] of the duration when count > 1, the midpoint when
// count == 1.
func FrameTimestamps(duration float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	if count == 1 {
		return []float64{duration * 0.5}
	}
	start := duration * 0.1
	span := duration * 0.8
	step := span / float64(count-1)
	out := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, start+float64(i)*step)
	}
	return out
}

func (c *Compositor) probeDuration(ctx context.Context, path string) (float64, error) {
	output, err := c.run(ctx, c.ffprobe, "-v", "error", "-show_entries", "format=duration", "-of", "json", path)
	if err != nil {
		return 0, services.Wrap(services.ErrProvider, "compositor", "probe duration", "", err)
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, services.Wrap(services.ErrProvider, "compositor", "probe duration", "parse ffprobe json", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrProvider, "compositor", "probe duration", "parse duration value", err)
	}
	return duration, nil
}

func (c *Compositor) workspace() (string, func(), error) {
	dir, err := os.MkdirTemp("", "reelay-compose-")
	if err != nil {
		return "", nil, services.Wrap(services.ErrProvider, "compositor", "workspace", "create temp dir", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("failed to remove compositor workspace", "dir", dir, "error", err)
		}
	}
	return dir, cleanup, nil
}

func (c *Compositor) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if c.runner != nil {
		return c.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

func buildExtractAudioArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		"-y",
		outputPath,
	}
}

func buildBurnArgs(inputPath, subtitlePath, outputPath string, format subtitle.Format, style subtitle.StyleProfile) []string {
	var filter string
	if format == subtitle.FormatASS {
		filter = "ass=" + subtitlePath
	} else {
		filter = fmt.Sprintf("subtitles=%s:force_style='%s'", subtitlePath, forceStyle(style))
	}
	return []string{
		"-i", inputPath,
		"-vf", filter,
		"-c:a", "copy",
		"-preset", "fast",
		"-y",
		outputPath,
	}
}

// forceStyle renders the profile as an ffmpeg subtitles-filter style override
// for plain documents that carry no styling of their own.
func forceStyle(style subtitle.StyleProfile) string {
	bold := 0
	if style.Bold {
		bold = -1
	}
	return fmt.Sprintf("FontName=%s,FontSize=%d,PrimaryColour=%s,OutlineColour=%s,BorderStyle=%d,Outline=%d,Shadow=%d,Bold=%d,Alignment=%d,MarginV=%d",
		style.FontName,
		style.FontSize,
		style.Primary.ASS(),
		style.Outline.ASS(),
		style.BorderStyle,
		style.OutlineWidth,
		style.Shadow,
		bold,
		style.Alignment,
		style.MarginV)
}

func buildFrameArgs(inputPath string, timestamp float64, outputPath string) []string {
	return []string{
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-vf", "crop='min(iw,ih)':'min(iw,ih)'",
		"-q:v", "2",
		"-y",
		outputPath,
	}
}
