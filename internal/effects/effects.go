package effects

import (
	"fmt"
	"strings"

	"github.com/ivlev/photo2video/internal/config"
)

// Effect renders the ffmpeg filter chain for one slide.
type Effect interface {
	GenerateFilter(params config.SegmentParams) string
}

// FadeEffect fades each slide in from black at its start and out to black
// at its end. Fades sit inside the slide's own duration.
type FadeEffect struct{}

func (e *FadeEffect) GenerateFilter(p config.SegmentParams) string {
	chain := []string{
		"setsar=1",
		fmt.Sprintf("fps=%d", p.FPS),
	}
	if p.Frames > 0 {
		chain = append(chain, fmt.Sprintf("trim=end_frame=%d", p.Frames), "setpts=PTS-STARTPTS")
	}
	if p.FadeDuration > 0 {
		chain = append(chain,
			fmt.Sprintf("fade=t=in:st=0:d=%.3f", p.FadeDuration),
			fmt.Sprintf("fade=t=out:st=%.3f:d=%.3f", p.Duration-p.FadeDuration, p.FadeDuration),
		)
	}
	chain = append(chain, "format=yuv420p")
	return strings.Join(chain, ",")
}
