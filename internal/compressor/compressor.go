package compressor

import (
	"context"
)

// Quality bounds for the size/fidelity trade-off. Values outside this
// domain are clamped before use.
const (
	MinQuality = 0.10
	MaxQuality = 0.90
)

// Options defines parameters for compressing a single image.
type Options struct {
	// MaxSizeMB is a soft output size target in megabytes. Quality is
	// stepped down until the output fits or the quality floor is reached.
	// Zero disables the target.
	MaxSizeMB float64
	// MaxDimensionPx caps the longest side of the output image in pixels.
	// Zero disables resizing.
	MaxDimensionPx int
	// Quality controls the encoding quality, in [MinQuality, MaxQuality].
	Quality float64
}

// Blob is a compressed image held in memory.
type Blob struct {
	Data      []byte
	MediaType string
}

// Size returns the blob size in bytes.
func (b *Blob) Size() int64 {
	return int64(len(b.Data))
}

// Compressor defines the interface for image compression.
type Compressor interface {
	// Compress re-encodes a single image according to the options.
	// It fails for input that cannot be decoded as an image.
	Compress(ctx context.Context, data []byte, opts Options) (*Blob, error)
}

// ClampQuality forces q into the supported quality domain.
func ClampQuality(q float64) float64 {
	switch {
	case q < MinQuality:
		return MinQuality
	case q > MaxQuality:
		return MaxQuality
	}
	return q
}
