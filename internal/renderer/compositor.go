// Package renderer turns source photos into captioned, fit-to-box frames.
package renderer

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/photo2video/internal/fonts"
	"github.com/ivlev/photo2video/internal/source"
	"github.com/ivlev/photo2video/internal/system"
)

const (
	TitleBottomPadding = 100
	DatePadding        = 30
	ShadowOffset       = 2
	ShadowAlpha        = 200
)

var (
	shadowColor = image.NewUniform(color.NRGBA{A: ShadowAlpha})
	fillColor   = image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
)

// Frame is one rendered slide.
type Frame struct {
	Index    int
	Path     string
	Image    *image.RGBA
	Duration float64

	Capture  source.Capture
	DateText string

	TitleApplied bool
	DateApplied  bool
}

// Compositor renders frames that fit inside Width x Height.
type Compositor struct {
	Width, Height int
	Fonts         *fonts.Set
}

// NewCompositor returns a Compositor for the target box.
func NewCompositor(width, height int, fs *fonts.Set) *Compositor {
	return &Compositor{Width: width, Height: height, Fonts: fs}
}

// Render loads the image at path and produces frame number index.
func (c *Compositor) Render(index int, path, title string, capture source.Capture, duration float64) (*Frame, error) {
	img, err := source.Load(path)
	if err != nil {
		return nil, err
	}

	dateText := capture.Display()
	out, titleApplied := c.Compose(index, img, title, dateText)
	return &Frame{
		Index:        index,
		Path:         path,
		Image:        out,
		Duration:     duration,
		Capture:      capture,
		DateText:     dateText,
		TitleApplied: titleApplied,
		DateApplied:  true,
	}, nil
}

// Compose scales img into the box and draws the captions. The title is
// only drawn on frame 0 and only when non-empty; the returned flag says
// whether it was.
func (c *Compositor) Compose(index int, img image.Image, title, date string) (*image.RGBA, bool) {
	b := img.Bounds()
	w, h, _ := FitSize(b.Dx(), b.Dy(), c.Width, c.Height)
	scaled := imaging.Resize(img, w, h, imaging.Lanczos)
	rect := image.Rect(0, 0, w, h)

	overlay := system.GetImage(rect)
	defer system.PutImage(overlay)

	titleApplied := index == 0 && title != ""
	if titleApplied {
		tw, th := measure(c.Fonts.Title, title)
		x := (w - tw) / 2
		y := h - th - TitleBottomPadding
		drawCaption(overlay, c.Fonts.Title, title, x, y)
	}

	dw, dh := measure(c.Fonts.Date, date)
	drawCaption(overlay, c.Fonts.Date, date, w-dw-DatePadding, h-dh-DatePadding)

	// Flatten onto black so transparent sources end up opaque.
	out := image.NewRGBA(rect)
	draw.Draw(out, rect, image.Black, image.Point{}, draw.Src)
	draw.Draw(out, rect, scaled, image.Point{}, draw.Over)
	draw.Draw(out, rect, overlay, image.Point{}, draw.Over)
	return out, titleApplied
}

// FitSize returns the largest size with the source aspect ratio that fits
// inside the box, and the scale factor used.
func FitSize(w, h, boxW, boxH int) (int, int, float64) {
	if w <= 0 || h <= 0 {
		return boxW, boxH, 1
	}
	var nw, nh int
	var scale float64
	if boxW*h <= boxH*w {
		scale = float64(boxW) / float64(w)
		nw, nh = boxW, h*boxW/w
	} else {
		scale = float64(boxH) / float64(h)
		nw, nh = w*boxH/h, boxH
	}
	return max(nw, 1), max(nh, 1), scale
}

// measure returns the ink box size of text.
func measure(face font.Face, text string) (int, int) {
	bounds, _ := font.BoundString(face, text)
	return (bounds.Max.X - bounds.Min.X).Ceil(), (bounds.Max.Y - bounds.Min.Y).Ceil()
}

// drawCaption draws text so its ink box starts at (x, y): a dark shadow
// first, then the white fill.
func drawCaption(dst draw.Image, face font.Face, text string, x, y int) {
	bounds, _ := font.BoundString(face, text)
	dot := fixed.Point26_6{
		X: fixed.I(x) - bounds.Min.X,
		Y: fixed.I(y) - bounds.Min.Y,
	}

	d := &font.Drawer{Dst: dst, Src: shadowColor, Face: face}
	d.Dot = dot.Add(fixed.P(ShadowOffset, ShadowOffset))
	d.DrawString(text)

	d.Src = fillColor
	d.Dot = dot
	d.DrawString(text)
}
