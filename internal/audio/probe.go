package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Prober returns ffprobe's JSON description of a media file.
type Prober func(ctx context.Context, path string) (string, error)

// NewProber probes with ffmpeg-go, or with the given ffprobe binary when one
// other than the one on PATH is configured.
func NewProber(ffprobePath string) Prober {
	if ffprobePath == "" || ffprobePath == "ffprobe" {
		return func(_ context.Context, path string) (string, error) {
			return ffmpeg.Probe(path)
		}
	}
	return func(ctx context.Context, path string) (string, error) {
		out, err := exec.CommandContext(ctx, ffprobePath,
			"-show_format", "-show_streams", "-of", "json", path).Output()
		if err != nil {
			return "", fmt.Errorf("%s %s: %w", ffprobePath, path, err)
		}
		return string(out), nil
	}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// ParseDuration pulls the container duration out of ffprobe JSON, falling
// back to the first audio stream's duration.
func ParseDuration(probeJSON string) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(probeJSON), &out); err != nil {
		return 0, fmt.Errorf("parse probe output: %w", err)
	}
	raw := out.Format.Duration
	if raw == "" {
		for _, s := range out.Streams {
			if s.CodecType == "audio" && s.Duration != "" {
				raw = s.Duration
				break
			}
		}
	}
	if raw == "" {
		return 0, fmt.Errorf("probe output has no duration")
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	return d, nil
}
