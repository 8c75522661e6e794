package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/ivlev/photo2video/internal/audio"
	"github.com/ivlev/photo2video/internal/config"
	"github.com/ivlev/photo2video/internal/fonts"
	"github.com/ivlev/photo2video/internal/logging"
	"github.com/ivlev/photo2video/internal/progress"
	"github.com/ivlev/photo2video/internal/renderer"
	"github.com/ivlev/photo2video/internal/source"
	"github.com/ivlev/photo2video/internal/system"
	"github.com/ivlev/photo2video/internal/timeline"
	"github.com/ivlev/photo2video/internal/video"
)

var ErrNoImages = config.ErrNoImages

// Stage is a step of a render job.
type Stage int

const (
	StageIdle Stage = iota
	StageResolvingFonts
	StageRenderingFrames
	StageAssemblingTimeline
	StageBuildingAudio
	StageEncoding
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:               "idle",
	StageResolvingFonts:     "resolving-fonts",
	StageRenderingFrames:    "rendering-frames",
	StageAssemblingTimeline: "assembling-timeline",
	StageBuildingAudio:      "building-audio",
	StageEncoding:           "encoding",
	StageDone:               "done",
	StageFailed:             "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Result is the outcome of one job. On failure Stage is where it stopped.
type Result struct {
	Stage    Stage
	Err      error
	Output   string
	Duration float64
	Frames   int
	Audio    *audio.Track
	Elapsed  time.Duration
}

func (r Result) OK() bool {
	return r.Err == nil && r.Stage == StageDone
}

type FontResolver interface {
	Resolve() *fonts.Set
}

type AudioBuilder interface {
	Build(ctx context.Context, spec audio.Spec, workDir string) (*audio.Track, error)
}

// Project runs one render job.
type Project struct {
	Config  *config.Config
	Fonts   FontResolver
	Audio   AudioBuilder
	Encoder video.VideoEncoder
	// Sink receives percentages. Nil means log lines.
	Sink   progress.Sink
	Logger hclog.Logger
	// OnStage, if set, is called on every stage change.
	OnStage func(Stage)

	stage Stage
}

func NewProject(cfg *config.Config, logger hclog.Logger) *Project {
	logger = logging.OrDefault(logger)
	return &Project{
		Config:  cfg,
		Fonts:   fonts.NewResolver(cfg.FontPath, logger.Named("fonts")),
		Audio:   audio.NewBuilder(cfg.FFmpegPath, cfg.FFprobePath, logger.Named("audio")),
		Encoder: video.NewFFmpegEncoder(logger.Named("video")),
		Logger:  logger,
	}
}

func (p *Project) enter(s Stage) {
	p.stage = s
	p.Logger.Debug("stage", "stage", s.String())
	if p.OnStage != nil {
		p.OnStage(s)
	}
}

// Run executes the job. Every failure, panics included, ends up in the
// returned Result and is logged once here.
func (p *Project) Run(ctx context.Context) (res Result) {
	start := time.Now()
	p.stage = StageIdle
	p.Logger = logging.OrDefault(p.Logger)

	defer func() {
		if r := recover(); r != nil {
			p.Logger.Trace("panic stack", "stack", string(debug.Stack()))
			res = Result{Stage: p.stage, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Elapsed = time.Since(start)
		if res.Err != nil {
			p.Logger.Error("video generation failed", "stage", res.Stage.String(), "error", res.Err)
			if p.OnStage != nil {
				p.OnStage(StageFailed)
			}
		}
	}()

	if err := p.run(ctx, &res); err != nil {
		res.Stage = p.stage
		res.Err = err
		return res
	}
	p.enter(StageDone)
	res.Stage = StageDone
	return res
}

func (p *Project) run(ctx context.Context, res *Result) error {
	cfg := p.Config
	if cfg == nil {
		return errors.New("engine: no config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	res.Output = cfg.OutputVideo

	workDir, err := os.MkdirTemp(cfg.WorkDir, "photo2video_"+uuid.NewString()[:8]+"_")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	p.Logger.Info("render started",
		"images", len(cfg.Images),
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps", config.FPS,
		"output", cfg.OutputVideo)

	p.enter(StageResolvingFonts)
	set := p.Fonts.Resolve()
	defer set.Close()

	p.enter(StageRenderingFrames)
	renderStart := time.Now()
	system.CheckMemory(ctx, system.FrameBytes(len(cfg.Images), cfg.Width, cfg.Height), p.Logger)
	frames, err := p.renderFrames(set)
	if err != nil {
		return err
	}
	renderTime := time.Since(renderStart)
	res.Frames = len(frames)

	p.enter(StageAssemblingTimeline)
	tl, err := timeline.Assemble(frames, cfg.Width, cfg.Height)
	if err != nil {
		return fmt.Errorf("assemble timeline: %w", err)
	}
	res.Duration = tl.Duration()

	var track *audio.Track
	if path := p.audioPath(); path != "" {
		p.enter(StageBuildingAudio)
		track, err = p.Audio.Build(ctx, audio.Spec{
			Source: path,
			Start:  cfg.AudioStart,
			End:    cfg.AudioEnd,
			Target: tl.Duration(),
		}, workDir)
		if err != nil {
			return fmt.Errorf("build audio: %w", err)
		}
		res.Audio = track
	}

	p.enter(StageEncoding)
	encodeStart := time.Now()
	sink := p.Sink
	if sink == nil {
		sink = progress.NewLogSink(p.Logger, 5)
	}
	reporter := progress.NewReporter(sink)
	reporter.Report(0)

	system.InitResourceLimits(uint64(len(tl.Clips))+256, p.Logger)
	opts := video.Options{
		FFmpegPath:   cfg.FFmpegPath,
		Encoder:      p.encoderName(ctx),
		Quality:      cfg.Quality,
		AudioCodec:   config.DefaultAudioCodec,
		AudioBitrate: config.DefaultAudioBitrate,
		WorkDir:      workDir,
	}
	if err := p.Encoder.Encode(ctx, tl, track, cfg.OutputVideo, opts, reporter.Update); err != nil {
		return fmt.Errorf("encode %s: %w", cfg.OutputVideo, err)
	}
	reporter.Report(100)
	encodeTime := time.Since(encodeStart)

	p.Logger.Info("render finished",
		"output", cfg.OutputVideo,
		"duration", fmt.Sprintf("%.2fs", tl.Duration()),
		"audio", track != nil)
	if cfg.ShowStats {
		p.Logger.Info("performance report",
			"build", cfg.BuildVersion,
			"render", renderTime.Round(time.Millisecond).String(),
			"encode", encodeTime.Round(time.Millisecond).String(),
			"frames", len(frames))
	}
	return nil
}

func (p *Project) renderFrames(set *fonts.Set) ([]*renderer.Frame, error) {
	cfg := p.Config
	comp := renderer.NewCompositor(cfg.Width, cfg.Height, set)
	frames := make([]*renderer.Frame, 0, len(cfg.Images))
	for i, path := range cfg.Images {
		capture := source.CaptureDate(path)
		if capture.Source != source.SourceMetadata {
			p.Logger.Debug("capture date fallback", "image", filepath.Base(path), "source", capture.Source.String(), "reason", capture.Reason)
		}
		frame, err := comp.Render(i, path, cfg.Title, capture, cfg.ImageDuration)
		if err != nil {
			return nil, fmt.Errorf("render frame %d: %w", i, err)
		}
		frames = append(frames, frame)
		p.Logger.Debug("frame ready", "index", i+1, "total", len(cfg.Images), "date", frame.DateText)
	}
	return frames, nil
}

// audioPath resolves the configured audio. A missing file means the video
// has no soundtrack.
func (p *Project) audioPath() string {
	if p.Config.AudioPath == "" {
		return ""
	}
	path, err := system.ResolveAudio(p.Config.AudioPath)
	if err != nil {
		p.Logger.Warn("audio not found, rendering without sound", "audio", p.Config.AudioPath, "error", err)
		return ""
	}
	return path
}

func (p *Project) encoderName(ctx context.Context) string {
	enc := p.Config.VideoEncoder
	if enc == "" || enc == "auto" {
		enc = system.DetectH264Encoder(ctx, p.Config.FFmpegPath, p.Logger)
		if enc != video.EncoderX264 {
			p.Logger.Info("hardware encoder detected", "encoder", enc)
		}
	}
	return enc
}
