package compressor

import (
	"bytes"
	"context"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)))
	return buf.Bytes()
}

func TestCompress_ResizesToFitDimensionCap(t *testing.T) {
	comp := NewImagingCompressor()
	data := encodeTestJPEG(t, 2400, 1200)

	blob, err := comp.Compress(context.Background(), data, Options{
		MaxDimensionPx: 1920,
		Quality:        0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", blob.MediaType)

	out, err := imaging.Decode(bytes.NewReader(blob.Data))
	require.NoError(t, err)
	assert.Equal(t, 1920, out.Bounds().Dx())
	assert.Equal(t, 960, out.Bounds().Dy())
}

func TestCompress_KeepsSmallImages(t *testing.T) {
	comp := NewImagingCompressor()
	data := encodeTestJPEG(t, 800, 600)

	blob, err := comp.Compress(context.Background(), data, Options{
		MaxDimensionPx: 1920,
		Quality:        0.7,
	})
	require.NoError(t, err)

	out, err := imaging.Decode(bytes.NewReader(blob.Data))
	require.NoError(t, err)
	assert.Equal(t, 800, out.Bounds().Dx())
	assert.Equal(t, 600, out.Bounds().Dy())
}

func TestCompress_SoftSizeTargetStopsAtQualityFloor(t *testing.T) {
	comp := NewImagingCompressor()
	data := encodeTestJPEG(t, 1000, 1000)

	// An impossible target: the compressor steps quality down to the
	// floor and returns whatever it has instead of failing.
	blob, err := comp.Compress(context.Background(), data, Options{
		MaxSizeMB: 0.00001,
		Quality:   0.9,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, blob.Data)
}

func TestCompress_RejectsUndecodableInput(t *testing.T) {
	comp := NewImagingCompressor()

	_, err := comp.Compress(context.Background(), []byte("definitely not an image"), Options{Quality: 0.7})
	assert.Error(t, err)
}

func TestCompress_CanceledContext(t *testing.T) {
	comp := NewImagingCompressor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := comp.Compress(ctx, encodeTestJPEG(t, 10, 10), Options{Quality: 0.7})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClampQuality(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.05, MinQuality},
		{0.10, 0.10},
		{0.50, 0.50},
		{0.90, 0.90},
		{0.95, MaxQuality},
		{-1, MinQuality},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampQuality(tt.in))
	}
}
