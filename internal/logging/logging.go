// Package logging builds the hclog logger shared by the CLI, the engine and
// the HTTP server.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options describes logger construction parameters.
type Options struct {
	Name   string
	Level  string
	JSON   bool
	Output io.Writer
}

// New constructs a root logger. Unknown levels fall back to info.
func New(opts Options) hclog.Logger {
	name := opts.Name
	if name == "" {
		name = "photo2video"
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      ParseLevel(opts.Level),
		Output:     out,
		JSONFormat: opts.JSON,
	})
}

// ParseLevel maps a textual level onto hclog, defaulting to Info.
func ParseLevel(level string) hclog.Level {
	l := hclog.LevelFromString(strings.TrimSpace(level))
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}

// OrDefault returns logger, or a discarding logger when it is nil.
func OrDefault(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}
