// Package imagemeta probes images for their format, dimensions and EXIF
// capture time without fully decoding pixel data.
package imagemeta

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Info describes a probed image.
type Info struct {
	Format  string     `json:"format"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
}

// Probe reads the image header for format and dimensions, and the EXIF
// block for the capture time when one is present.
func Probe(data []byte) (*Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	return &Info{
		Format:  format,
		Width:   cfg.Width,
		Height:  cfg.Height,
		TakenAt: captureTime(data),
	}, nil
}

// captureTime extracts the EXIF DateTime, falling back to DateTimeOriginal.
// Images without usable EXIF yield nil.
func captureTime(data []byte) *time.Time {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if tm, err := x.DateTime(); err == nil {
		return &tm
	}
	if field, err := x.Get(exif.DateTimeOriginal); err == nil {
		if s, err := field.StringVal(); err == nil {
			if tm, err := time.Parse("2006:01:02 15:04:05", s); err == nil {
				return &tm
			}
		}
	}
	return nil
}
