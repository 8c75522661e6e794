package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/photo2video/internal/config"
	"github.com/ivlev/photo2video/internal/engine"
	"github.com/ivlev/photo2video/internal/source"
)

type renderFlags struct {
	output        string
	audio         string
	audioStart    float64
	audioEnd      float64
	imageDuration float64
	title         string
	width         int
	height        int
	preset        string
	encoder       string
	quality       int
	font          string
	ffmpeg        string
	ffprobe       string
	workDir       string
	stats         bool
	noProgress    bool
	dryRun        bool
}

func newRenderCommand(opts *globalOptions) *cobra.Command {
	f := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render [images or directories...]",
		Short: "Render images into a video",
		Long: "Render images into a video. Directories expand to the images they " +
			"contain, sorted by name. Each image is shown for --duration seconds " +
			"with a fade in and out, captioned with its capture date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, &cfg, args); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if f.dryRun {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(cfg)
			}

			logger := newLogger(cfg)
			p := engine.NewProject(&cfg, logger)
			if !f.noProgress && isTerminal(cmd.ErrOrStderr()) {
				bar := newBarSink(cmd.ErrOrStderr())
				defer bar.Close()
				p.Sink = bar
			}

			res := p.Run(cmd.Context())
			if !res.OK() {
				return fmt.Errorf("render failed at %s: %w", res.Stage, res.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%.1fs, %d images)\n", res.Output, res.Duration, res.Frames)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "Output video (default output/<name>_<timestamp>.mp4)")
	fl.StringVarP(&f.audio, "audio", "a", "", "Audio file, or a directory to take the newest audio file from")
	fl.Float64Var(&f.audioStart, "audio-start", 0, "Audio trim start in seconds")
	fl.Float64Var(&f.audioEnd, "audio-end", 0, "Audio trim end in seconds (0 means the end of the file)")
	fl.Float64VarP(&f.imageDuration, "duration", "d", config.DefaultImageDuration, "Seconds per image")
	fl.StringVarP(&f.title, "title", "t", "", "Title drawn on the first image")
	fl.IntVar(&f.width, "width", config.DefaultWidth, "Video width")
	fl.IntVar(&f.height, "height", config.DefaultHeight, "Video height")
	fl.StringVarP(&f.preset, "preset", "p", "", "Resolution preset: 1080p, 16:9, 720p, 9:16, 4:5")
	fl.StringVar(&f.encoder, "encoder", "", "H.264 encoder: auto, libx264, h264_nvenc, h264_videotoolbox")
	fl.IntVar(&f.quality, "quality", 0, "Quality (0 = encoder default; x264 CRF, VideoToolbox bitrate = Q*100kbit/s)")
	fl.StringVar(&f.font, "font", "", "TrueType/OpenType font for captions")
	fl.StringVar(&f.ffmpeg, "ffmpeg", "", "ffmpeg binary")
	fl.StringVar(&f.ffprobe, "ffprobe", "", "ffprobe binary")
	fl.StringVar(&f.workDir, "work-dir", "", "Directory for intermediate files")
	fl.BoolVar(&f.stats, "stats", false, "Log a timing report at the end")
	fl.BoolVar(&f.noProgress, "no-progress", false, "Log progress instead of drawing a bar")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Print the resolved job as YAML and exit")

	return cmd
}

// apply overlays explicitly set flags and positional inputs onto cfg.
func (f *renderFlags) apply(cmd *cobra.Command, cfg *config.Config, args []string) error {
	changed := cmd.Flags().Changed

	if len(args) > 0 {
		images, err := source.Collect(args)
		if err != nil {
			return err
		}
		cfg.Images = images
	} else if len(cfg.Images) > 0 {
		images, err := source.Collect(cfg.Images)
		if err != nil {
			return err
		}
		cfg.Images = images
	}

	if changed("width") {
		cfg.Width = f.width
	}
	if changed("height") {
		cfg.Height = f.height
	}
	if changed("preset") {
		if err := cfg.ApplyPreset(f.preset); err != nil {
			return err
		}
	}
	if changed("duration") {
		cfg.ImageDuration = f.imageDuration
	}
	if changed("title") {
		cfg.Title = f.title
	}
	if changed("audio") {
		cfg.AudioPath = f.audio
	}
	if changed("audio-start") {
		cfg.AudioStart = f.audioStart
	}
	if changed("audio-end") {
		end := f.audioEnd
		cfg.AudioEnd = &end
	}
	if changed("encoder") {
		cfg.VideoEncoder = f.encoder
	}
	if changed("quality") {
		cfg.Quality = f.quality
	}
	if changed("font") {
		cfg.FontPath = f.font
	}
	if changed("ffmpeg") {
		cfg.FFmpegPath = f.ffmpeg
	}
	if changed("ffprobe") {
		cfg.FFprobePath = f.ffprobe
	}
	if changed("work-dir") {
		cfg.WorkDir = f.workDir
	}
	if f.stats {
		cfg.ShowStats = true
	}

	if changed("output") {
		cfg.OutputVideo = f.output
	}
	if cfg.OutputVideo == "" {
		cfg.OutputVideo = cfg.DefaultOutput(time.Now())
	}
	return nil
}
