// Package audio fits a soundtrack to the length of the rendered video.
package audio

import (
	"fmt"
	"math"
)

// Spec is what the caller asks for.
type Spec struct {
	Source string
	Start  float64
	// End is optional; nil or a non-positive value means "to the end".
	End    *float64
	Target float64
}

// Plan is the resolved trim/loop decision for one source.
type Plan struct {
	SourceDuration float64
	Target         float64

	Trimmed     bool
	TrimStart   float64
	TrimEnd     float64
	TrimSkipped bool
	Reason      string

	// Segment is the length of audio that gets looped or truncated.
	Segment float64
	Loop    bool
	// Copies is how many times the segment is laid end to end before
	// truncating to Target.
	Copies int
}

// NewPlan works out how to turn a source of sourceDur seconds into exactly
// target seconds.
func NewPlan(sourceDur, start float64, end *float64, target float64) Plan {
	p := Plan{
		SourceDuration: sourceDur,
		Target:         target,
		Segment:        sourceDur,
		Copies:         1,
	}
	if start < 0 {
		start = 0
	}

	hasEnd := end != nil && *end > 0
	if start > 0 || hasEnd {
		resolvedEnd := sourceDur
		if hasEnd {
			resolvedEnd = math.Min(*end, sourceDur)
		}
		if start < resolvedEnd {
			p.Trimmed = true
			p.TrimStart = start
			p.TrimEnd = resolvedEnd
			p.Segment = resolvedEnd - start
		} else {
			p.TrimSkipped = true
			p.Reason = fmt.Sprintf("trim start %.3fs is not before end %.3fs, using full source", start, resolvedEnd)
		}
	}

	if p.Segment > 0 && p.Segment < target {
		p.Loop = true
		p.Copies = int(math.Ceil(target/p.Segment)) + 1
	}
	return p
}

// Track is a finished soundtrack on disk.
type Track struct {
	Path     string
	Duration float64
	Plan     Plan
}
