package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// FPS is fixed for every rendered video.
	FPS = 24
	// FadeDuration is the fade-in/fade-out length applied to every slide.
	FadeDuration = 0.5

	DefaultWidth         = 1920
	DefaultHeight        = 1080
	DefaultImageDuration = 3.0
	DefaultAudioCodec    = "aac"
	DefaultAudioBitrate  = "192k"
)

var (
	ErrNoImages        = errors.New("config: no input images")
	ErrInvalidSize     = errors.New("config: width and height must be positive even numbers")
	ErrInvalidDuration = errors.New("config: image duration must be positive")
	ErrNoOutput        = errors.New("config: output path is empty")
)

// Config is one render job plus the ambient settings around it.
type Config struct {
	Images        []string `yaml:"images" toml:"images"`
	OutputVideo   string   `yaml:"output" toml:"output"`
	Width         int      `yaml:"width" toml:"width"`
	Height        int      `yaml:"height" toml:"height"`
	Preset        string   `yaml:"preset" toml:"preset"`
	ImageDuration float64  `yaml:"image_duration" toml:"image_duration"`
	Title         string   `yaml:"title" toml:"title"`

	AudioPath  string   `yaml:"audio" toml:"audio"`
	AudioStart float64  `yaml:"audio_start" toml:"audio_start"`
	AudioEnd   *float64 `yaml:"audio_end,omitempty" toml:"audio_end,omitempty"`

	VideoEncoder string `yaml:"encoder" toml:"encoder"`
	Quality      int    `yaml:"quality" toml:"quality"`
	FontPath     string `yaml:"font" toml:"font"`

	FFmpegPath  string `yaml:"ffmpeg" toml:"ffmpeg"`
	FFprobePath string `yaml:"ffprobe" toml:"ffprobe"`
	WorkDir     string `yaml:"work_dir" toml:"work_dir"`

	LogLevel string `yaml:"log_level" toml:"log_level"`
	LogJSON  bool   `yaml:"log_json" toml:"log_json"`

	ShowStats    bool   `yaml:"-" toml:"-"`
	BuildVersion string `yaml:"-" toml:"-"`
}

// SegmentParams describes one slide as seen by the effect filters. A zero
// Frames leaves the slide untrimmed.
type SegmentParams struct {
	Width, Height int
	FPS           int
	Duration      float64
	Frames        int
	FadeDuration  float64
	PageIndex     int
}

// Default returns a Config populated with the documented defaults.
func Default() Config {
	return Config{
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		ImageDuration: DefaultImageDuration,
		VideoEncoder:  "auto",
		FFmpegPath:    "ffmpeg",
		FFprobePath:   "ffprobe",
		LogLevel:      "info",
	}
}

// Load reads a job file on top of the defaults. The format follows the
// extension: .yaml/.yml or .toml.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read job file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("job file %s: unsupported format", path)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse job file %s: %w", path, err)
	}

	if cfg.Preset != "" {
		if err := cfg.ApplyPreset(cfg.Preset); err != nil {
			return cfg, err
		}
	}

	// Relative paths in a job file are relative to the file itself.
	base := filepath.Dir(path)
	for i, img := range cfg.Images {
		cfg.Images[i] = resolve(base, img)
	}
	if cfg.AudioPath != "" {
		cfg.AudioPath = resolve(base, cfg.AudioPath)
	}
	if cfg.OutputVideo != "" {
		cfg.OutputVideo = resolve(base, cfg.OutputVideo)
	}
	return cfg, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Environment variables consulted by ApplyEnv.
const (
	EnvLogLevel = "PHOTO2VIDEO_LOG_LEVEL"
	EnvFFmpeg   = "PHOTO2VIDEO_FFMPEG"
	EnvFFprobe  = "PHOTO2VIDEO_FFPROBE"
	EnvFont     = "PHOTO2VIDEO_FONT"
	EnvEncoder  = "PHOTO2VIDEO_ENCODER"
	EnvQuality  = "PHOTO2VIDEO_QUALITY"
)

// ApplyEnv overlays non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvFFmpeg); v != "" {
		c.FFmpegPath = v
	}
	if v := getenv(EnvFFprobe); v != "" {
		c.FFprobePath = v
	}
	if v := getenv(EnvFont); v != "" {
		c.FontPath = v
	}
	if v := getenv(EnvEncoder); v != "" {
		c.VideoEncoder = v
	}
	if v := getenv(EnvQuality); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			c.Quality = q
		}
	}
}

// Validate checks the job before any work starts.
func (c *Config) Validate() error {
	if len(c.Images) == 0 {
		return ErrNoImages
	}
	if strings.TrimSpace(c.OutputVideo) == "" {
		return ErrNoOutput
	}
	// yuv420p requires even dimensions.
	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidSize, c.Width, c.Height)
	}
	if c.ImageDuration <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, c.ImageDuration)
	}
	return nil
}
