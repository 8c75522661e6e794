package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/photo2video/internal/audio"
	"github.com/ivlev/photo2video/internal/config"
	"github.com/ivlev/photo2video/internal/effects"
	"github.com/ivlev/photo2video/internal/logging"
	"github.com/ivlev/photo2video/internal/progress"
	"github.com/ivlev/photo2video/internal/timeline"
)

// Options controls one encode.
type Options struct {
	FFmpegPath   string
	Encoder      string
	Quality      int
	AudioCodec   string
	AudioBitrate string
	// WorkDir receives the per-clip stills. It must exist.
	WorkDir string
}

func (o Options) withDefaults() Options {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.Encoder == "" || o.Encoder == "auto" {
		o.Encoder = EncoderX264
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality(o.Encoder)
	}
	if o.AudioCodec == "" {
		o.AudioCodec = config.DefaultAudioCodec
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = config.DefaultAudioBitrate
	}
	return o
}

type VideoEncoder interface {
	Encode(ctx context.Context, tl *timeline.Timeline, track *audio.Track, out string, opts Options, onEvent func(progress.Event)) error
}

// FFmpegEncoder writes the timeline to an MP4 with a single ffmpeg run.
type FFmpegEncoder struct {
	Effect effects.Effect
	Logger hclog.Logger
}

func NewFFmpegEncoder(logger hclog.Logger) *FFmpegEncoder {
	logger = logging.OrDefault(logger)
	return &FFmpegEncoder{Effect: &effects.FadeEffect{}, Logger: logger}
}

func (e *FFmpegEncoder) Encode(
	ctx context.Context,
	tl *timeline.Timeline,
	track *audio.Track,
	out string,
	opts Options,
	onEvent func(progress.Event),
) error {
	if tl == nil || len(tl.Clips) == 0 {
		return timeline.ErrEmpty
	}
	opts = opts.withDefaults()

	stills, err := WriteStills(tl, opts.WorkDir)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	args := BuildArgs(tl, stills, track, out, opts, e.Effect)
	e.Logger.Debug("starting ffmpeg", "encoder", opts.Encoder, "clips", len(tl.Clips), "frames", tl.TotalFrames(), "duration", tl.Duration())
	e.Logger.Trace("ffmpeg", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, opts.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	total := tl.Duration()
	var g errgroup.Group
	g.Go(func() error {
		err := cmd.Wait()
		pw.Close()
		if err != nil {
			return fmt.Errorf("ffmpeg error: %w, output: %s", err, tail(stderr.String(), 800))
		}
		return nil
	})
	g.Go(func() error {
		err := ReadProgress(pr, total, onEvent)
		// Keep draining so ffmpeg never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
		if err != nil {
			return fmt.Errorf("read ffmpeg progress: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// WriteStills saves every clip canvas as a PNG in dir and returns the paths
// in clip order.
func WriteStills(tl *timeline.Timeline, dir string) ([]string, error) {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	paths := make([]string, len(tl.Clips))
	for i, c := range tl.Clips {
		p := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", i))
		if err := writePNG(&enc, p, c.Canvas); err != nil {
			return nil, fmt.Errorf("write frame %d: %w", i, err)
		}
		paths[i] = p
	}
	return paths, nil
}

func writePNG(enc *png.Encoder, path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := enc.Encode(w, img); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// BuildArgs assembles the full ffmpeg command line. Stills are looped for
// their clip duration, faded, concatenated, and muxed with the optional
// audio track.
func BuildArgs(
	tl *timeline.Timeline,
	stills []string,
	track *audio.Track,
	out string,
	opts Options,
	eff effects.Effect,
) []string {
	opts = opts.withDefaults()
	if eff == nil {
		eff = &effects.FadeEffect{}
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for i, c := range tl.Clips {
		args = append(args,
			"-loop", "1",
			"-framerate", fmt.Sprintf("%d", tl.FPS),
			"-t", seconds(c.Duration),
			"-i", stills[i],
		)
	}
	audioIndex := -1
	if track != nil {
		audioIndex = len(tl.Clips)
		args = append(args, "-i", track.Path)
	}

	var graph strings.Builder
	var concatInputs strings.Builder
	for i := range tl.Clips {
		fmt.Fprintf(&graph, "[%d:v]%s[v%d];", i, eff.GenerateFilter(tl.Segment(i)), i)
		fmt.Fprintf(&concatInputs, "[v%d]", i)
	}
	fmt.Fprintf(&graph, "%sconcat=n=%d:v=1:a=0[vout]", concatInputs.String(), len(tl.Clips))

	args = append(args, "-filter_complex", graph.String(), "-map", "[vout]")
	if audioIndex >= 0 {
		args = append(args, "-map", fmt.Sprintf("%d:a", audioIndex))
	}

	args = append(args,
		"-r", fmt.Sprintf("%d", tl.FPS),
		"-c:v", opts.Encoder,
	)
	args = append(args, QualityArgs(opts.Encoder, opts.Quality)...)
	args = append(args, "-pix_fmt", "yuv420p")
	if audioIndex >= 0 {
		args = append(args, "-c:a", opts.AudioCodec, "-b:a", opts.AudioBitrate)
	}
	args = append(args,
		"-t", seconds(tl.Duration()),
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		out,
	)
	return args
}

// ReadProgress parses ffmpeg's -progress key=value stream. Output time is
// reported on the "t" bar against total; frame counts go to "frame_index".
func ReadProgress(r io.Reader, total float64, onEvent func(progress.Event)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ev, ok := ParseProgressLine(sc.Text(), total)
		if ok && onEvent != nil {
			onEvent(ev)
		}
	}
	return sc.Err()
}

// ParseProgressLine converts a single progress line into an Event.
func ParseProgressLine(line string, total float64) (progress.Event, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return progress.Event{}, false
	}
	switch key {
	// out_time_ms is microseconds as well, ffmpeg never fixed the name.
	case "out_time_us", "out_time_ms":
		var us int64
		if _, err := fmt.Sscanf(value, "%d", &us); err != nil {
			return progress.Event{}, false
		}
		return progress.Event{Bar: progress.TimeBar, Attr: key, Value: float64(us) / 1e6, Total: total}, true
	case "frame":
		var n int64
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
			return progress.Event{}, false
		}
		return progress.Event{Bar: "frame_index", Attr: key, Value: float64(n), Total: total * config.FPS}, true
	case "progress":
		if value == "end" {
			return progress.Event{Bar: progress.TimeBar, Attr: key, Value: total, Total: total}, true
		}
	}
	return progress.Event{}, false
}

func seconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
