// Package media wraps the ffmpeg and ffprobe binaries for audio track
// extraction. The audio stream is copied, never re-encoded.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

var (
	ErrFFmpegNotFound   = errors.New("media: ffmpeg not found in PATH")
	ErrFFprobeNotFound  = errors.New("media: ffprobe not found in PATH")
	ErrExtractionFailed = errors.New("media: audio extraction failed")
	ErrInvalidVideo     = errors.New("media: invalid or corrupted video file")
	ErrNoAudioStream    = errors.New("media: container has no audio stream")
)

type Config struct {
	FFmpegPath  string
	FFprobePath string
}

func DefaultConfig() *Config {
	return &Config{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Extractor shells out to ffmpeg. Both binaries are resolved at
// construction so a missing install fails the process at startup, not on
// the first job.
type Extractor struct {
	config *Config
}

func NewExtractor(cfg *Config) (*Extractor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFprobeNotFound, err)
	}

	return &Extractor{config: cfg}, nil
}

// ExtractAudio copies the audio stream of inputPath into outputPath. The
// container must already be known to carry audio; see Probe.
func (e *Extractor) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	args := extractArgs(inputPath, outputPath)

	cmd := exec.CommandContext(ctx, e.config.FFmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: ffmpeg failed: %v, output: %s", ErrExtractionFailed, err, tail(output))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("%w: no output produced: %v", ErrExtractionFailed, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: empty output", ErrExtractionFailed)
	}

	return nil
}

func extractArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-vn",
		"-acodec", "copy",
		"-y",
		outputPath,
	}
}

// tail keeps error messages readable when ffmpeg dumps its full log.
func tail(output []byte) string {
	const limit = 512
	if len(output) <= limit {
		return string(output)
	}
	return "..." + string(output[len(output)-limit:])
}
