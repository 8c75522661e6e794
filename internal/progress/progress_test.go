package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ got []float64 }

func (r *recorder) Report(p float64) { r.got = append(r.got, p) }

func TestReporterForwardsOnlyTimeBar(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec)

	r.Update(Event{Bar: "frame_index", Value: 10, Total: 100})
	r.Update(Event{Bar: TimeBar, Attr: "out_time", Value: 1.5, Total: 6})
	r.Update(Event{Bar: "chunk", Value: 50, Total: 100})
	r.Update(Event{Bar: TimeBar, Value: 6, Total: 6})

	assert.Equal(t, []float64{25, 100}, rec.got)
}

func TestReporterComputesEachEventFresh(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec)
	for _, v := range []float64{1, 2, 3} {
		r.Update(Event{Bar: TimeBar, Value: v, Total: 4})
	}
	assert.Equal(t, []float64{25, 50, 75}, rec.got)
}

func TestReporterClampsAndNeverGoesBack(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec)

	r.Update(Event{Bar: TimeBar, Value: 3, Total: 4})
	r.Update(Event{Bar: TimeBar, Value: 1, Total: 4})
	r.Update(Event{Bar: TimeBar, Value: 9, Total: 4})
	r.Update(Event{Bar: TimeBar, Value: 1, Total: 0})
	r.Report(-5)

	assert.Equal(t, []float64{75, 75, 100, 100}, rec.got)
}

func TestNilReporter(t *testing.T) {
	r := NewReporter(nil)
	require.Nil(t, r)
	assert.NotPanics(t, func() {
		r.Update(Event{Bar: TimeBar, Value: 1, Total: 2})
		r.Report(50)
	})
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{250, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in))
	}
}

func TestLogSinkBuckets(t *testing.T) {
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Info})
	s := NewLogSink(logger, 10)

	for _, p := range []float64{0, 1, 9.9, 10, 15, 35, 36, 100, 100} {
		s.Report(p)
	}
	// 0, 10, 35 (bucket 3) and 100.
	assert.Equal(t, 4, strings.Count(buf.String(), "encoding"))
	assert.False(t, s.ShouldLog(100))
}

func TestLogSinkDefaultBucket(t *testing.T) {
	s := NewLogSink(nil, 0)
	assert.True(t, s.ShouldLog(0))
	assert.False(t, s.ShouldLog(4.9))
	assert.True(t, s.ShouldLog(5))
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	assert.Nil(t, Multi(nil, nil))
	assert.Same(t, a, Multi(nil, a))

	Multi(a, nil, b).Report(12)
	assert.Equal(t, []float64{12}, a.got)
	assert.Equal(t, []float64{12}, b.got)
}
