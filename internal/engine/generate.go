package engine

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/ivlev/photo2video/internal/config"
	"github.com/ivlev/photo2video/internal/progress"
)

// Request is the single-call form of a render job. Zero values take the
// defaults: 1920x1080, 3 seconds per image, audio from the start.
type Request struct {
	Images        []string
	Audio         string
	Output        string
	Width         int
	Height        int
	AudioStart    float64
	AudioEnd      *float64
	ImageDuration float64
	Title         string
	OnProgress    func(percent float64)
	Logger        hclog.Logger
}

// Config converts the request into a job configuration.
func (r Request) Config() config.Config {
	cfg := config.Default()
	cfg.Images = append([]string(nil), r.Images...)
	cfg.AudioPath = r.Audio
	cfg.OutputVideo = r.Output
	if r.Width != 0 || r.Height != 0 {
		cfg.Width, cfg.Height = r.Width, r.Height
	}
	if r.ImageDuration != 0 {
		cfg.ImageDuration = r.ImageDuration
	}
	cfg.AudioStart = r.AudioStart
	cfg.AudioEnd = r.AudioEnd
	cfg.Title = r.Title
	return cfg
}

// Run builds a Project for the request and runs it.
func (r Request) Run(ctx context.Context) Result {
	cfg := r.Config()
	p := NewProject(&cfg, r.Logger)
	if r.OnProgress != nil {
		p.Sink = progress.SinkFunc(r.OnProgress)
	}
	return p.Run(ctx)
}

// Generate renders the request and reports only whether it succeeded. The
// failure cause is logged.
func Generate(ctx context.Context, req Request) bool {
	return req.Run(ctx).OK()
}
