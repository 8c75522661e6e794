package system

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFindLatestAudio(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "old.mp3"), now.Add(-2*time.Hour))
	touch(t, filepath.Join(dir, "new.FLAC"), now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "newest.txt"), now)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.wav"), 0755))

	got, err := FindLatestAudio(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new.FLAC"), got)

	_, err = FindLatestAudio(t.TempDir())
	assert.Error(t, err)
}

func TestResolveAudio(t *testing.T) {
	dir := t.TempDir()
	song := filepath.Join(dir, "song.m4a")
	touch(t, song, time.Now())

	got, err := ResolveAudio(song)
	require.NoError(t, err)
	assert.Equal(t, song, got)

	got, err = ResolveAudio(dir)
	require.NoError(t, err)
	assert.Equal(t, song, got)

	_, err = ResolveAudio(filepath.Join(dir, "missing.mp3"))
	assert.Error(t, err)
}

func TestHardwareH264Encoders(t *testing.T) {
	assert.Equal(t, []string{"h264_videotoolbox", "h264_nvenc"}, HardwareH264Encoders(" V....D h264_nvenc\n V....D h264_videotoolbox"))
	assert.Equal(t, []string{"h264_nvenc"}, HardwareH264Encoders(" V....D libx264\n V....D h264_nvenc"))
	assert.Empty(t, HardwareH264Encoders(" V....D libx264"))
}

// stubFFmpeg lists libx264 and h264_nvenc; encoding with nvenc exits 1
// unless nvencWorks is set.
func stubFFmpeg(t *testing.T, nvencWorks bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	nvencExit := "1"
	if nvencWorks {
		nvencExit = "0"
	}
	script := `#!/bin/sh
case "$*" in
*-encoders*) printf ' V....D libx264\n V....D h264_nvenc\n'; exit 0 ;;
*h264_nvenc*) echo 'Cannot load libcuda.so.1' >&2; exit ` + nvencExit + ` ;;
esac
exit 0
`
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestDetectH264Encoder(t *testing.T) {
	ctx := context.Background()
	logger := hclog.NewNullLogger()

	assert.Equal(t, "libx264", DetectH264Encoder(ctx, filepath.Join(t.TempDir(), "no-ffmpeg"), logger))
	assert.Equal(t, "libx264", DetectH264Encoder(ctx, stubFFmpeg(t, false), logger))
	assert.Equal(t, "h264_nvenc", DetectH264Encoder(ctx, stubFFmpeg(t, true), nil))
}

func TestTrialEncode(t *testing.T) {
	ctx := context.Background()
	bin := stubFFmpeg(t, false)

	assert.NoError(t, TrialEncode(ctx, bin, "libx264"))
	err := TrialEncode(ctx, bin, "h264_nvenc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "libcuda")
}

func TestCheckMemory(t *testing.T) {
	orig := VirtualMemory
	t.Cleanup(func() { VirtualMemory = orig })
	logger := hclog.NewNullLogger()

	VirtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Available: 1 << 30}, nil
	}
	check := CheckMemory(context.Background(), 1<<20, logger)
	assert.True(t, check.Enough)
	assert.Equal(t, uint64(1<<30), check.Available)

	check = CheckMemory(context.Background(), 2<<30, logger)
	assert.False(t, check.Enough)

	VirtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("unsupported")
	}
	check = CheckMemory(context.Background(), 2<<30, logger)
	assert.True(t, check.Enough)
}

func TestFrameBytes(t *testing.T) {
	assert.Equal(t, uint64(10*1920*1080*8), FrameBytes(10, 1920, 1080))
}

func TestImagePool(t *testing.T) {
	p := NewImagePool()
	r := image.Rect(0, 0, 4, 4)

	img := p.Get(r)
	assert.Equal(t, r, img.Bounds())
	img.Pix[0] = 255
	p.Put(img)

	again := p.Get(r)
	assert.Zero(t, again.Pix[0])

	assert.NotPanics(t, func() { p.Put(nil) })
	assert.NotPanics(t, func() { p.Put(image.NewRGBA(image.Rect(0, 0, 1, 1))) })
}
