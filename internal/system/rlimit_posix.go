//go:build linux || darwin

package system

import (
	"syscall"

	"github.com/hashicorp/go-hclog"
)

// InitResourceLimits raises the open-file limit. ffmpeg keeps one input
// open per slide.
func InitResourceLimits(want uint64, logger hclog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("failed to read open file limit", "error", err)
		return
	}
	if rLimit.Cur >= want {
		return
	}

	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("failed to raise open file limit", "error", err)
		return
	}
	logger.Debug("open file limit raised", "limit", rLimit.Cur)
}
