// Package timeline assembles rendered frames into a sequence of timed,
// fading clips on a common canvas.
package timeline

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/ivlev/photo2video/internal/config"
	"github.com/ivlev/photo2video/internal/renderer"
)

var ErrEmpty = errors.New("timeline: no frames to assemble")

// Clip is one slide on the timeline. Canvas is the frame centred on the
// timeline's canvas. Duration is Frames/FPS, the requested duration rounded
// to whole frames.
type Clip struct {
	Frame    *renderer.Frame
	Canvas   *image.RGBA
	Start    float64
	Duration float64
	Frames   int
	FadeIn   float64
	FadeOut  float64
}

// End is the time the clip stops being shown.
func (c Clip) End() float64 {
	return c.Start + c.Duration
}

// Timeline is the visual track of the video.
type Timeline struct {
	Width, Height int
	FPS           int
	Clips         []Clip
}

// Duration is the sum of the clip durations. Fades happen inside each clip
// and never add length.
func (t *Timeline) Duration() float64 {
	total := 0.0
	for _, c := range t.Clips {
		total += c.Duration
	}
	return total
}

// Segment returns the filter parameters for clip i.
func (t *Timeline) Segment(i int) config.SegmentParams {
	c := t.Clips[i]
	return config.SegmentParams{
		Width:        t.Width,
		Height:       t.Height,
		FPS:          t.FPS,
		Duration:     c.Duration,
		Frames:       c.Frames,
		FadeDuration: c.FadeIn,
		PageIndex:    i,
	}
}

// Assemble turns frames into clips in input order. Every clip gets a fade
// in and a fade out, the first and last ones included.
func Assemble(frames []*renderer.Frame, width, height int) (*Timeline, error) {
	if len(frames) == 0 {
		return nil, ErrEmpty
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("timeline: invalid canvas %dx%d", width, height)
	}

	tl := &Timeline{Width: width, Height: height, FPS: config.FPS}
	start := 0.0
	for i, f := range frames {
		if f == nil || f.Image == nil {
			return nil, fmt.Errorf("timeline: frame %d is empty", i)
		}
		if f.Duration <= 0 {
			return nil, fmt.Errorf("timeline: frame %d has non-positive duration %.3f", i, f.Duration)
		}
		n := FrameCount(f.Duration, tl.FPS)
		dur := float64(n) / float64(tl.FPS)
		fade := ClampFade(config.FadeDuration, dur)
		clip := Clip{
			Frame:    f,
			Canvas:   Compose(f.Image, width, height),
			Start:    start,
			Duration: dur,
			Frames:   n,
			FadeIn:   fade,
			FadeOut:  fade,
		}
		tl.Clips = append(tl.Clips, clip)
		start = clip.End()
	}
	return tl, nil
}

// FrameCount rounds a duration to a whole number of frames, at least one.
func FrameCount(duration float64, fps int) int {
	n := int(math.Round(duration * float64(fps)))
	if n < 1 {
		n = 1
	}
	return n
}

// TotalFrames is the number of frames in the encoded video.
func (t *Timeline) TotalFrames() int {
	total := 0
	for _, c := range t.Clips {
		total += c.Frames
	}
	return total
}

// ClampFade keeps fade-in and fade-out from overlapping inside a clip.
func ClampFade(fade, duration float64) float64 {
	if fade*2 > duration {
		return duration / 2
	}
	return fade
}

// Placement is where an image of the given size lands when centred on a
// width x height canvas.
func Placement(size image.Point, width, height int) image.Rectangle {
	x := (width - size.X) / 2
	y := (height - size.Y) / 2
	return image.Rect(x, y, x+size.X, y+size.Y)
}

// Compose centres img on an opaque black canvas. Images larger than the
// canvas are clipped evenly on both sides.
func Compose(img *image.RGBA, width, height int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	b := img.Bounds()
	dst := Placement(b.Size(), width, height)
	draw.Draw(canvas, dst, img, b.Min, draw.Src)
	return canvas
}
