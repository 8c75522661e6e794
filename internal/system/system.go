package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v3/mem"
)

var audioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac"}

// IsAudio reports whether path has a known audio extension.
func IsAudio(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FindLatestAudio returns the most recently modified audio file in dir.
func FindLatestAudio(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !IsAudio(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no audio files found in %s", dir)
	}
	return latestFile, nil
}

// ResolveAudio turns a configured audio path into a file. Directories yield
// their latest audio file.
func ResolveAudio(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return FindLatestAudio(path)
	}
	return path, nil
}

// Hardware encoders in order of preference. libx264 is the fallback.
var hardwareEncoders = []string{"h264_videotoolbox", "h264_nvenc"}

// HardwareH264Encoders returns the hardware encoders named in the output of
// `ffmpeg -encoders`, most preferred first.
func HardwareH264Encoders(listing string) []string {
	var found []string
	for _, enc := range hardwareEncoders {
		if strings.Contains(listing, enc) {
			found = append(found, enc)
		}
	}
	return found
}

// TrialEncode encodes a single blank frame with enc. Distribution builds
// list h264_nvenc even without an NVIDIA driver, so being listed is not
// enough.
func TrialEncode(ctx context.Context, ffmpegPath, enc string) error {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=black:s=256x256:d=0.1",
		"-frames:v", "1", "-c:v", enc,
		"-f", "null", "-")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("trial encode with %s: %w: %s", enc, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DetectH264Encoder returns the first hardware encoder that ffmpeg lists and
// can actually use, or libx264.
func DetectH264Encoder(ctx context.Context, ffmpegPath string, logger hclog.Logger) string {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	out, err := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, enc := range HardwareH264Encoders(string(out)) {
		if err := TrialEncode(ctx, ffmpegPath, enc); err != nil {
			logger.Debug("hardware encoder unusable", "encoder", enc, "error", err)
			continue
		}
		return enc
	}
	return "libx264"
}

// MemoryCheck is the outcome of a memory preflight.
type MemoryCheck struct {
	Need      uint64
	Available uint64
	Enough    bool
}

// VirtualMemory is swapped in tests.
var VirtualMemory = mem.VirtualMemoryWithContext

// CheckMemory compares need against available RAM and warns when the job is
// unlikely to fit. Failing to read memory stats is not an error.
func CheckMemory(ctx context.Context, need uint64, logger hclog.Logger) MemoryCheck {
	check := MemoryCheck{Need: need, Enough: true}
	vm, err := VirtualMemory(ctx)
	if err != nil {
		logger.Debug("memory stats unavailable", "error", err)
		return check
	}
	check.Available = vm.Available
	if need > vm.Available {
		check.Enough = false
		logger.Warn("frames may not fit in memory",
			"need", humanize.Bytes(need),
			"available", humanize.Bytes(vm.Available))
	} else {
		logger.Debug("memory preflight",
			"need", humanize.Bytes(need),
			"available", humanize.Bytes(vm.Available))
	}
	return check
}

// FrameBytes estimates the memory held by n rendered frames of w x h. Each
// slide keeps its frame and its canvas.
func FrameBytes(n, w, h int) uint64 {
	return uint64(n) * uint64(w) * uint64(h) * 4 * 2
}
