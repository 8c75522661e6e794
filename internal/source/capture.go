package source

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifLayout is the canonical EXIF date/time representation.
const ExifLayout = "2006:01:02 15:04:05"

// DisplayLayout is how capture dates are printed on slides.
const DisplayLayout = "January 02, 2006"

// DateSource tells which path produced a capture date.
type DateSource int

const (
	SourceMetadata DateSource = iota
	SourceFileTime
	SourceNow
)

func (s DateSource) String() string {
	switch s {
	case SourceMetadata:
		return "metadata"
	case SourceFileTime:
		return "file-time"
	case SourceNow:
		return "now"
	}
	return fmt.Sprintf("DateSource(%d)", int(s))
}

// Capture is the resolved display date of one image.
type Capture struct {
	Time   time.Time
	Source DateSource
	// Reason explains why metadata was not used. Empty for SourceMetadata.
	Reason string
}

// Display formats the date for the slide caption.
func (c Capture) Display() string {
	return c.Time.Format(DisplayLayout)
}

var errNoDateTag = errors.New("no DateTimeOriginal or DateTime tag")

// CaptureDate resolves the capture date of an image. It never fails:
// metadata problems fall back to the file modification time.
func CaptureDate(path string) Capture {
	t, err := exifDate(path)
	if err == nil {
		return Capture{Time: t, Source: SourceMetadata}
	}

	fi, statErr := os.Stat(path)
	if statErr != nil {
		return Capture{
			Time:   time.Now(),
			Source: SourceNow,
			Reason: fmt.Sprintf("%v; stat: %v", err, statErr),
		}
	}
	return Capture{Time: fi.ModTime(), Source: SourceFileTime, Reason: err.Error()}
}

func exifDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("exif: %w", err)
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := ParseExifTime(raw)
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	}
	return time.Time{}, errNoDateTag
}

// ParseExifTime parses "YYYY:MM:DD HH:MM:SS" in local time. Trailing NULs
// and spaces written by some cameras are ignored.
func ParseExifTime(raw string) (time.Time, error) {
	s := strings.TrimRight(strings.TrimSpace(raw), "\x00")
	t, err := time.ParseInLocation(ExifLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse exif date %q: %w", raw, err)
	}
	return t, nil
}
