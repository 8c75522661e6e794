package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var ErrEmptySource = errors.New("audio: source has no duration")

// Runner executes one ffmpeg invocation and returns its combined output.
type Runner func(ctx context.Context, name string, args []string) ([]byte, error)

func execRunner(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Builder produces Tracks with ffmpeg.
type Builder struct {
	FFmpegPath string
	Probe      Prober
	Run        Runner
	Logger     hclog.Logger
}

func NewBuilder(ffmpegPath, ffprobePath string, logger hclog.Logger) *Builder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Builder{
		FFmpegPath: ffmpegPath,
		Probe:      NewProber(ffprobePath),
		Run:        execRunner,
		Logger:     logger,
	}
}

// Build writes a PCM WAV of exactly spec.Target seconds into workDir. A zero
// target produces no track.
func (b *Builder) Build(ctx context.Context, spec Spec, workDir string) (*Track, error) {
	if spec.Target <= 0 {
		return nil, nil
	}

	probed, err := b.Probe(ctx, spec.Source)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", spec.Source, err)
	}
	dur, err := ParseDuration(probed)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", spec.Source, err)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, spec.Source)
	}

	plan := NewPlan(dur, spec.Start, spec.End, spec.Target)
	if plan.TrimSkipped {
		b.Logger.Warn("audio trim skipped", "source", spec.Source, "reason", plan.Reason)
	}
	b.Logger.Debug("audio plan",
		"source", spec.Source,
		"duration", dur,
		"segment", plan.Segment,
		"loop", plan.Loop,
		"copies", plan.Copies,
		"target", plan.Target,
	)

	segment := spec.Source
	if plan.Trimmed {
		segment = filepath.Join(workDir, "audio_trimmed.wav")
		if err := b.run(ctx, TrimArgs(spec.Source, segment, plan)); err != nil {
			return nil, fmt.Errorf("trim audio: %w", err)
		}
	}

	out := filepath.Join(workDir, "audio_track.wav")
	if err := b.run(ctx, FitArgs(segment, out, plan)); err != nil {
		return nil, fmt.Errorf("fit audio to %.3fs: %w", plan.Target, err)
	}

	return &Track{Path: out, Duration: plan.Target, Plan: plan}, nil
}

func (b *Builder) run(ctx context.Context, args []string) error {
	b.Logger.Trace("ffmpeg", "args", strings.Join(args, " "))
	out, err := b.Run(ctx, b.FFmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: %s", err, tail(out, 400))
	}
	return nil
}

func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}

func seconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// TrimArgs cuts [TrimStart, TrimEnd) out of src into a PCM WAV.
func TrimArgs(src, dst string, plan Plan) []string {
	return ffmpeg.Input(src, ffmpeg.KwArgs{
		"ss": seconds(plan.TrimStart),
		"t":  seconds(plan.TrimEnd - plan.TrimStart),
	}).Output(dst, ffmpeg.KwArgs{
		"map": "0:a:0",
		"c:a": "pcm_s16le",
	}).OverWriteOutput().GetArgs()
}

// FitArgs loops src Copies times when needed and cuts it to exactly Target
// seconds. apad covers decoder rounding at the tail.
func FitArgs(src, dst string, plan Plan) []string {
	in := ffmpeg.KwArgs{}
	if plan.Loop {
		in["stream_loop"] = strconv.Itoa(plan.Copies - 1)
	}
	return ffmpeg.Input(src, in).Output(dst, ffmpeg.KwArgs{
		"map": "0:a:0",
		"af":  "apad",
		"t":   seconds(plan.Target),
		"c:a": "pcm_s16le",
	}).OverWriteOutput().GetArgs()
}
