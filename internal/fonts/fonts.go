// Package fonts resolves the caption faces used on rendered slides.
package fonts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

const (
	TitleSize = 100.0
	DateSize  = 70.0
)

// DefaultCandidates are probed in order when no font is configured.
var DefaultCandidates = []string{
	"C:/Windows/Fonts/arial.ttf",
	"C:/Windows/Fonts/seguiemj.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
}

// Set holds the faces for one render job.
type Set struct {
	Title font.Face
	Date  font.Face
	// Path is the font file in use; empty when Fallback is set.
	Path     string
	Fallback bool
	Reason   string
}

// Close releases the faces.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.Title.Close(), s.Date.Close())
}

// Resolver picks the first usable font from Candidates.
type Resolver struct {
	Candidates []string
	Exists     func(path string) bool
	ReadFile   func(path string) ([]byte, error)
	// Fallback supplies the built-in face when no candidate works.
	Fallback func() font.Face
	Logger   hclog.Logger
}

// NewResolver returns a Resolver over the OS filesystem. An explicit font
// path, when given, is probed before the defaults.
func NewResolver(preferred string, logger hclog.Logger) *Resolver {
	candidates := DefaultCandidates
	if preferred != "" {
		candidates = append([]string{preferred}, DefaultCandidates...)
	}
	return &Resolver{
		Candidates: candidates,
		Exists:     fileExists,
		ReadFile:   os.ReadFile,
		Fallback:   func() font.Face { return basicfont.Face7x13 },
		Logger:     logger,
	}
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// Resolve never fails: when nothing can be loaded the fallback face is
// used for both sizes and a warning is logged.
func (r *Resolver) Resolve() *Set {
	var reasons []string
	for _, path := range r.Candidates {
		if !r.Exists(path) {
			continue
		}
		set, err := r.load(path)
		if err != nil {
			reasons = append(reasons, err.Error())
			continue
		}
		if r.Logger != nil {
			r.Logger.Debug("font resolved", "path", path)
		}
		return set
	}

	reason := "no candidate font file found"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	if r.Logger != nil {
		r.Logger.Warn("custom fonts not found, using built-in font", "reason", reason)
	}
	face := r.Fallback()
	return &Set{Title: face, Date: face, Fallback: true, Reason: reason}
}

func (r *Resolver) load(path string) (*Set, error) {
	data, err := r.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}

	var f *opentype.Font
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		coll, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse font collection %s: %w", path, err)
		}
		f, err = coll.Font(0)
		if err != nil {
			return nil, fmt.Errorf("font collection %s: %w", path, err)
		}
	} else {
		f, err = opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", path, err)
		}
	}

	title, err := newFace(f, TitleSize)
	if err != nil {
		return nil, fmt.Errorf("title face %s: %w", path, err)
	}
	date, err := newFace(f, DateSize)
	if err != nil {
		title.Close()
		return nil, fmt.Errorf("date face %s: %w", path, err)
	}
	return &Set{Title: title, Date: date, Path: path}, nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
