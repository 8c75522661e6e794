// Package progress turns encoder progress events into a single percentage.
package progress

import (
	"math"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// TimeBar is the bar label the encoder uses for elapsed output time.
const TimeBar = "t"

// Event is one raw progress update from the encoder.
type Event struct {
	Bar   string
	Attr  string
	Value float64
	Total float64
}

// Sink receives completion percentages in [0,100].
type Sink interface {
	Report(percent float64)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(percent float64)

func (f SinkFunc) Report(percent float64) { f(percent) }

// Reporter forwards time-bar events to a Sink. Each percentage is computed
// from the event alone and never reported lower than the previous one.
type Reporter struct {
	sink Sink

	mu   sync.Mutex
	last float64
	seen bool
}

// NewReporter returns nil when sink is nil so callers can fall back to the
// encoder's default indicator.
func NewReporter(sink Sink) *Reporter {
	if sink == nil {
		return nil
	}
	return &Reporter{sink: sink}
}

// Update handles one encoder event. Events on other bars are ignored.
func (r *Reporter) Update(ev Event) {
	if r == nil || ev.Bar != TimeBar || ev.Total <= 0 {
		return
	}
	r.Report(ev.Value / ev.Total * 100)
}

// Report clamps and forwards a percentage.
func (r *Reporter) Report(percent float64) {
	if r == nil {
		return
	}
	percent = Clamp(percent)

	r.mu.Lock()
	if r.seen && percent < r.last {
		percent = r.last
	}
	r.last, r.seen = percent, true
	r.mu.Unlock()

	r.sink.Report(percent)
}

func Clamp(percent float64) float64 {
	switch {
	case math.IsNaN(percent), percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}

// LogSink writes progress to a logger, once per bucket crossed.
type LogSink struct {
	logger     hclog.Logger
	bucketSize float64

	mu         sync.Mutex
	lastBucket int
}

// NewLogSink constructs a sink that logs when the percent crosses bucket
// boundaries (default 5%).
func NewLogSink(logger hclog.Logger, bucketSize float64) *LogSink {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LogSink{logger: logger, bucketSize: bucketSize, lastBucket: -1}
}

func (s *LogSink) Report(percent float64) {
	if s.ShouldLog(percent) {
		s.logger.Info("encoding", "percent", int(percent))
	}
}

// ShouldLog reports whether percent lands in a bucket not yet logged.
func (s *LogSink) ShouldLog(percent float64) bool {
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket <= s.lastBucket {
		return false
	}
	s.lastBucket = bucket
	return true
}

// Multi fans a report out to several sinks. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var out []Sink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return SinkFunc(func(p float64) {
		for _, s := range out {
			s.Report(p)
		}
	})
}
