package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"

	"github.com/ivlev/photo2video/internal/audio"
	"github.com/ivlev/photo2video/internal/config"
	"github.com/ivlev/photo2video/internal/fonts"
	"github.com/ivlev/photo2video/internal/progress"
	"github.com/ivlev/photo2video/internal/timeline"
	"github.com/ivlev/photo2video/internal/video"
)

type fakeFonts struct{}

func (fakeFonts) Resolve() *fonts.Set {
	return &fonts.Set{Title: basicfont.Face7x13, Date: basicfont.Face7x13, Fallback: true}
}

type fakeAudio struct {
	specs []audio.Spec
	err   error
}

func (f *fakeAudio) Build(_ context.Context, spec audio.Spec, workDir string) (*audio.Track, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	return &audio.Track{Path: filepath.Join(workDir, "audio_track.wav"), Duration: spec.Target}, nil
}

type fakeEncoder struct {
	tl    *timeline.Timeline
	track *audio.Track
	opts  video.Options
	err   error
	panic bool
}

func (f *fakeEncoder) Encode(_ context.Context, tl *timeline.Timeline, track *audio.Track, out string, opts video.Options, onEvent func(progress.Event)) error {
	if f.panic {
		panic("encoder blew up")
	}
	f.tl, f.track, f.opts = tl, track, opts
	if f.err != nil {
		return f.err
	}
	onEvent(progress.Event{Bar: "frame_index", Value: 1, Total: 10})
	onEvent(progress.Event{Bar: progress.TimeBar, Value: tl.Duration() / 2, Total: tl.Duration()})
	return os.WriteFile(out, []byte("mp4"), 0644)
}

func writeImages(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		img := image.NewRGBA(image.Rect(0, 0, 80, 40))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p+2], img.Pix[p+3] = 200, 255
		}
		paths[i] = filepath.Join(dir, string(rune('a'+i))+".png")
		f, err := os.Create(paths[i])
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	return paths
}

func newTestProject(t *testing.T, images []string) (*Project, *fakeAudio, *fakeEncoder, *[]float64) {
	t.Helper()
	cfg := config.Default()
	cfg.Images = images
	cfg.Width, cfg.Height = 160, 90
	cfg.ImageDuration = 2
	cfg.Title = "Holiday"
	cfg.VideoEncoder = video.EncoderX264
	cfg.OutputVideo = filepath.Join(t.TempDir(), "out.mp4")
	cfg.WorkDir = t.TempDir()

	p := NewProject(&cfg, nil)
	fa, fe := &fakeAudio{}, &fakeEncoder{}
	p.Fonts, p.Audio, p.Encoder = fakeFonts{}, fa, fe

	var reports []float64
	p.Sink = progress.SinkFunc(func(pc float64) { reports = append(reports, pc) })
	return p, fa, fe, &reports
}

func TestRunWithoutAudio(t *testing.T) {
	p, fa, fe, reports := newTestProject(t, writeImages(t, 3))
	var stages []Stage
	p.OnStage = func(s Stage) { stages = append(stages, s) }

	res := p.Run(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, 3, res.Frames)
	assert.Equal(t, 6.0, res.Duration)
	assert.Nil(t, res.Audio)

	assert.Empty(t, fa.specs)
	assert.Nil(t, fe.track)
	assert.Equal(t, 6.0, fe.tl.Duration())
	assert.Equal(t, video.EncoderX264, fe.opts.Encoder)
	assert.FileExists(t, p.Config.OutputVideo)

	assert.Equal(t, []Stage{StageResolvingFonts, StageRenderingFrames, StageAssemblingTimeline, StageEncoding, StageDone}, stages)
	assert.Equal(t, []float64{0, 50, 100}, *reports)
}

func TestRunTitleOnlyOnFirstFrame(t *testing.T) {
	p, _, fe, _ := newTestProject(t, writeImages(t, 3))
	require.True(t, p.Run(context.Background()).OK())

	for i, c := range fe.tl.Clips {
		assert.Equal(t, i == 0, c.Frame.TitleApplied, "frame %d", i)
		assert.True(t, c.Frame.DateApplied, "frame %d", i)
		assert.Equal(t, image.Rect(0, 0, 160, 90), c.Canvas.Bounds())
	}
	// 80x40 scales to 160x80, centred with 5px bars.
	assert.Equal(t, color.RGBA{A: 255}, fe.tl.Clips[1].Canvas.RGBAAt(0, 2))
}

func TestRunBuildsAudioToVideoLength(t *testing.T) {
	p, fa, fe, _ := newTestProject(t, writeImages(t, 2))
	song := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(song, []byte("id3"), 0644))
	end := 20.0
	p.Config.AudioPath = song
	p.Config.AudioStart = 5
	p.Config.AudioEnd = &end

	res := p.Run(context.Background())
	require.True(t, res.OK(), "%v", res.Err)

	require.Len(t, fa.specs, 1)
	assert.Equal(t, audio.Spec{Source: song, Start: 5, End: &end, Target: 4}, fa.specs[0])
	require.NotNil(t, fe.track)
	assert.Equal(t, 4.0, fe.track.Duration)
	assert.Same(t, fe.track, res.Audio)
}

func TestRunMissingAudioRendersSilently(t *testing.T) {
	p, fa, fe, _ := newTestProject(t, writeImages(t, 2))
	p.Config.AudioPath = filepath.Join(t.TempDir(), "gone.mp3")

	res := p.Run(context.Background())
	require.True(t, res.OK(), "%v", res.Err)
	assert.Empty(t, fa.specs)
	assert.Nil(t, fe.track)
}

func TestRunNegativeAudioStartIsNotFatal(t *testing.T) {
	p, fa, _, _ := newTestProject(t, writeImages(t, 2))
	p.Config.AudioStart = -1
	require.True(t, p.Run(context.Background()).OK())
	assert.Empty(t, fa.specs)

	p, fa, _, _ = newTestProject(t, writeImages(t, 2))
	song := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(song, []byte("id3"), 0644))
	p.Config.AudioPath = song
	p.Config.AudioStart = -1
	res := p.Run(context.Background())
	require.True(t, res.OK(), "%v", res.Err)
	require.Len(t, fa.specs, 1)
	assert.Equal(t, -1.0, fa.specs[0].Start)
}

// ffmpegListingNVENC stands in for a distribution ffmpeg that lists
// h264_nvenc on a host without an NVIDIA driver.
func ffmpegListingNVENC(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	script := `#!/bin/sh
case "$*" in
*-encoders*) printf ' V....D libx264\n V....D h264_nvenc\n'; exit 0 ;;
*h264_nvenc*) echo 'Cannot load libcuda.so.1' >&2; exit 1 ;;
esac
exit 0
`
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestRunAutoEncoderFallsBackToX264(t *testing.T) {
	p, _, fe, _ := newTestProject(t, writeImages(t, 2))
	p.Config.FFmpegPath = ffmpegListingNVENC(t)
	p.Config.VideoEncoder = "auto"

	res := p.Run(context.Background())
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, video.EncoderX264, fe.opts.Encoder)
}

func TestRequestUsesAutoEncoder(t *testing.T) {
	assert.Equal(t, "auto", Request{}.Config().VideoEncoder)
}

func TestRunFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(p *Project, fa *fakeAudio, fe *fakeEncoder)
		stage Stage
		is    error
	}{
		{
			name:  "no images",
			setup: func(p *Project, _ *fakeAudio, _ *fakeEncoder) { p.Config.Images = nil },
			stage: StageIdle,
			is:    ErrNoImages,
		},
		{
			name: "unreadable image",
			setup: func(p *Project, _ *fakeAudio, _ *fakeEncoder) {
				p.Config.Images = append(p.Config.Images, filepath.Join(p.Config.WorkDir, "missing.jpg"))
			},
			stage: StageRenderingFrames,
		},
		{
			name: "audio failure",
			setup: func(p *Project, fa *fakeAudio, _ *fakeEncoder) {
				song := filepath.Join(p.Config.WorkDir, "song.wav")
				os.WriteFile(song, []byte("riff"), 0644)
				p.Config.AudioPath = song
				fa.err = boom
			},
			stage: StageBuildingAudio,
			is:    boom,
		},
		{
			name:  "encoder failure",
			setup: func(_ *Project, _ *fakeAudio, fe *fakeEncoder) { fe.err = boom },
			stage: StageEncoding,
			is:    boom,
		},
		{
			name:  "encoder panic",
			setup: func(_ *Project, _ *fakeAudio, fe *fakeEncoder) { fe.panic = true },
			stage: StageEncoding,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fa, fe, _ := newTestProject(t, writeImages(t, 2))
			tt.setup(p, fa, fe)
			var last Stage
			p.OnStage = func(s Stage) { last = s }

			res := p.Run(context.Background())
			assert.False(t, res.OK())
			require.Error(t, res.Err)
			assert.Equal(t, tt.stage, res.Stage)
			if tt.is != nil {
				assert.ErrorIs(t, res.Err, tt.is)
			}
			assert.Equal(t, StageFailed, last)
		})
	}
}

func TestRunRemovesWorkDir(t *testing.T) {
	p, _, fe, _ := newTestProject(t, writeImages(t, 1))
	fe.err = errors.New("disk full")
	p.Run(context.Background())

	entries, err := os.ReadDir(p.Config.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "rendering-frames", StageRenderingFrames.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}

func TestRequestDefaults(t *testing.T) {
	cfg := Request{Images: []string{"a.jpg"}, Output: "out.mp4"}.Config()
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 1080, cfg.Height)
	assert.Equal(t, 3.0, cfg.ImageDuration)
	assert.Zero(t, cfg.AudioStart)
	assert.Nil(t, cfg.AudioEnd)
	assert.Empty(t, cfg.Title)

	cfg = Request{Width: 1080, Height: 1920, ImageDuration: 5, Title: "x"}.Config()
	assert.Equal(t, 1080, cfg.Width)
	assert.Equal(t, 1920, cfg.Height)
	assert.Equal(t, 5.0, cfg.ImageDuration)
	assert.Equal(t, "x", cfg.Title)
}

func TestGenerateReturnsFalseOnFailure(t *testing.T) {
	ctx := context.Background()
	assert.False(t, Generate(ctx, Request{Output: filepath.Join(t.TempDir(), "out.mp4")}))
	assert.False(t, Generate(ctx, Request{
		Images: []string{filepath.Join(t.TempDir(), "missing.jpg")},
		Output: filepath.Join(t.TempDir(), "out.mp4"),
	}))
}
