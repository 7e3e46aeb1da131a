package compressor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// qualityStep is how far quality drops per attempt while chasing the
// soft size target.
const qualityStep = 0.05

// ImagingCompressor compresses images in memory using the imaging library.
// Output is always JPEG; EXIF orientation is applied during decoding.
type ImagingCompressor struct{}

// NewImagingCompressor creates a new ImagingCompressor instance.
func NewImagingCompressor() *ImagingCompressor {
	return &ImagingCompressor{}
}

// Compress decodes the image, fits it into the dimension cap and re-encodes
// it as JPEG at the requested quality. When the output exceeds the soft size
// target, quality is stepped down until the output fits or the quality floor
// is reached; the floor wins over the target.
func (c *ImagingCompressor) Compress(ctx context.Context, data []byte, opts Options) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if opts.MaxDimensionPx > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > opts.MaxDimensionPx || bounds.Dy() > opts.MaxDimensionPx {
			img = imaging.Fit(img, opts.MaxDimensionPx, opts.MaxDimensionPx, imaging.Lanczos)
		}
	}

	quality := ClampQuality(opts.Quality)
	var maxBytes int64
	if opts.MaxSizeMB > 0 {
		maxBytes = int64(opts.MaxSizeMB * 1024 * 1024)
	}

	out, err := encodeJPEG(img, quality)
	if err != nil {
		return nil, err
	}
	for maxBytes > 0 && int64(len(out)) > maxBytes && quality > MinQuality {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		quality = math.Max(MinQuality, quality-qualityStep)
		out, err = encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
	}

	return &Blob{Data: out, MediaType: "image/jpeg"}, nil
}

// encodeJPEG encodes the image as JPEG at the given quality (0.10..0.90
// mapped to the encoder's 1..100 scale).
func encodeJPEG(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	q := int(math.Round(quality * 100))
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
