// Package api exposes render jobs over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/ivlev/photo2video/internal/config"
	"github.com/ivlev/photo2video/internal/engine"
	"github.com/ivlev/photo2video/internal/logging"
	"github.com/ivlev/photo2video/internal/progress"
)

// Job statuses reported by /api/progress.
const (
	StatusIdle       = "idle"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	ImagePaths    []string `json:"image_paths" binding:"required,min=1"`
	OutputPath    string   `json:"output_path"`
	Resolution    string   `json:"resolution"`
	AudioPath     string   `json:"audio_path"`
	AudioStart    float64  `json:"audio_start"`
	AudioEnd      *float64 `json:"audio_end"`
	ImageDuration float64  `json:"image_duration"`
	TitleText     string   `json:"title_text"`
}

// Progress is the body of GET /api/progress.
type Progress struct {
	JobID   string  `json:"job_id,omitempty"`
	Status  string  `json:"status"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
	Result  string  `json:"result,omitempty"`
}

// Runner executes one job. Swapped in tests.
type Runner func(ctx context.Context, cfg config.Config, sink progress.Sink) engine.Result

// Server runs at most one render job at a time.
type Server struct {
	base   config.Config
	run    Runner
	logger hclog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	state Progress
}

// NewServer builds a server whose jobs inherit the ambient settings of base
// (ffmpeg paths, encoder, fonts, work dir).
func NewServer(base config.Config, logger hclog.Logger) *Server {
	logger = logging.OrDefault(logger)
	s := &Server{
		base:   base,
		logger: logger,
		now:    time.Now,
		state:  Progress{Status: StatusIdle},
	}
	s.run = s.runProject
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func (s *Server) runProject(ctx context.Context, cfg config.Config, sink progress.Sink) engine.Result {
	p := engine.NewProject(&cfg, s.logger.Named("engine"))
	p.Sink = sink
	p.OnStage = func(st engine.Stage) {
		s.update(func(pr *Progress) {
			if pr.Status == StatusGenerating {
				pr.Message = st.String()
			}
		})
	}
	return p.Run(ctx)
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	api.POST("/generate", s.handleGenerate)
	api.GET("/progress", s.handleProgress)
	return r
}

// Shutdown cancels a running job and waits for it to finish.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until the current job, if any, is done.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleProgress(c *gin.Context) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": StatusError, "message": err.Error()})
		return
	}

	cfg, err := s.jobConfig(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": StatusError, "message": err.Error()})
		return
	}

	jobID := uuid.NewString()
	s.mu.Lock()
	if s.state.Status == StatusGenerating {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"status": StatusError, "message": "a video is already being generated"})
		return
	}
	s.state = Progress{JobID: jobID, Status: StatusGenerating, Message: "starting"}
	s.wg.Add(1)
	s.mu.Unlock()

	log := s.logger.With("job", jobID)
	log.Info("job accepted", "images", len(cfg.Images), "output", cfg.OutputVideo)

	go func() {
		defer s.wg.Done()
		sink := progress.Multi(
			progress.SinkFunc(func(p float64) {
				s.update(func(pr *Progress) { pr.Percent = p })
			}),
			progress.NewLogSink(log, 10),
		)
		res := s.run(s.ctx, cfg, sink)
		s.update(func(pr *Progress) {
			if res.OK() {
				pr.Status = StatusCompleted
				pr.Percent = 100
				pr.Message = "complete"
				pr.Result = cfg.OutputVideo
				return
			}
			pr.Status = StatusError
			pr.Message = fmt.Sprintf("%s: %v", res.Stage, res.Err)
		})
		log.Info("job finished", "ok", res.OK(), "elapsed", res.Elapsed.String())
	}()

	c.JSON(http.StatusOK, gin.H{"status": "started", "job_id": jobID, "output_path": cfg.OutputVideo})
}

func (s *Server) update(fn func(*Progress)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
}

// jobConfig layers a request on top of the server's base settings.
func (s *Server) jobConfig(req GenerateRequest) (config.Config, error) {
	cfg := s.base
	cfg.Images = append([]string(nil), req.ImagePaths...)
	cfg.AudioPath = req.AudioPath
	cfg.AudioStart = req.AudioStart
	cfg.AudioEnd = req.AudioEnd
	cfg.Title = req.TitleText
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = config.DefaultWidth, config.DefaultHeight
	}
	if req.Resolution != "" {
		if err := cfg.ApplyPreset(req.Resolution); err != nil {
			return cfg, err
		}
	}
	switch {
	case req.ImageDuration > 0:
		cfg.ImageDuration = req.ImageDuration
	case cfg.ImageDuration <= 0:
		cfg.ImageDuration = config.DefaultImageDuration
	}
	cfg.OutputVideo = req.OutputPath
	if cfg.OutputVideo == "" {
		cfg.OutputVideo = cfg.DefaultOutput(s.now())
	}
	return cfg, cfg.Validate()
}
