package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ivlev/photo2video/internal/config"
)

func TestFadeEffect(t *testing.T) {
	var eff Effect = &FadeEffect{}
	got := eff.GenerateFilter(config.SegmentParams{
		Width: 1920, Height: 1080, FPS: 24, Duration: 3, FadeDuration: 0.5,
	})
	assert.Equal(t,
		"setsar=1,fps=24,fade=t=in:st=0:d=0.500,fade=t=out:st=2.500:d=0.500,format=yuv420p",
		got)
}

func TestFadeEffectWithoutFade(t *testing.T) {
	got := (&FadeEffect{}).GenerateFilter(config.SegmentParams{FPS: 24, Duration: 3})
	assert.Equal(t, "setsar=1,fps=24,format=yuv420p", got)
}

func TestFadeEffectTrimsToFrameCount(t *testing.T) {
	got := (&FadeEffect{}).GenerateFilter(config.SegmentParams{
		FPS: 24, Duration: 26.0 / 24, Frames: 26, FadeDuration: 0.5,
	})
	assert.Equal(t,
		"setsar=1,fps=24,trim=end_frame=26,setpts=PTS-STARTPTS,fade=t=in:st=0:d=0.500,fade=t=out:st=0.583:d=0.500,format=yuv420p",
		got)
}
