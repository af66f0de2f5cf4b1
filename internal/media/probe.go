package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// ProbeResult is the subset of ffprobe output the pipeline cares about.
type ProbeResult struct {
	Duration    float64
	FormatName  string
	HasAudio    bool
	HasVideo    bool
	AudioCodec  string
	StreamCount int
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe inspects a container with ffprobe. Callers use it to fail fast on
// corrupted uploads and on videos with no audio track, without launching a
// doomed ffmpeg run.
func (e *Extractor) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, e.config.FFprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed: %v", ErrInvalidVideo, err)
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return nil, fmt.Errorf("%w: unparseable ffprobe output: %v", ErrInvalidVideo, err)
	}

	result := &ProbeResult{
		FormatName:  probed.Format.FormatName,
		StreamCount: len(probed.Streams),
	}
	if probed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
			result.Duration = d
		}
	}
	for _, s := range probed.Streams {
		switch s.CodecType {
		case "audio":
			result.HasAudio = true
			if result.AudioCodec == "" {
				result.AudioCodec = s.CodecName
			}
		case "video":
			result.HasVideo = true
		}
	}

	if result.StreamCount == 0 {
		return nil, fmt.Errorf("%w: no streams found", ErrInvalidVideo)
	}

	return result, nil
}
