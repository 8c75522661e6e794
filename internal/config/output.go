package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultOutputDir is where videos go when no output path is given.
const DefaultOutputDir = "output"

// OutputName derives "<dir>/<name>_<timestamp>.mp4" from the file the video
// is named after.
func OutputName(dir, nameSource string, now time.Time) string {
	if dir == "" {
		dir = DefaultOutputDir
	}
	base := filepath.Base(nameSource)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "slideshow"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.mp4", name, now.Format("2006-01-02_15-04-05")))
}

// DefaultOutput names the video after the audio track if there is one,
// otherwise after the first image.
func (c *Config) DefaultOutput(now time.Time) string {
	src := c.AudioPath
	if src == "" && len(c.Images) > 0 {
		src = c.Images[0]
	}
	return OutputName(DefaultOutputDir, src, now)
}
