package video

import "fmt"

const (
	EncoderX264         = "libx264"
	EncoderNVENC        = "h264_nvenc"
	EncoderVideoToolbox = "h264_videotoolbox"
)

// DefaultQuality is used when no quality was configured.
func DefaultQuality(encoder string) int {
	switch encoder {
	case EncoderVideoToolbox:
		return 75
	case EncoderNVENC:
		return 28
	default:
		return 23
	}
}

// QualityArgs maps the single quality knob onto each encoder's own flag.
func QualityArgs(encoder string, quality int) []string {
	switch encoder {
	case EncoderVideoToolbox:
		// VideoToolbox ignores -q:v on many builds, use a bitrate instead.
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case EncoderNVENC:
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}
