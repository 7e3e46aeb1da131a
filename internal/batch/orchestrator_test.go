package batch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-squeezer-go/internal/compressor"
	"image-squeezer-go/internal/statistics"
)

// fakeCompressor succeeds for any input except data starting with "FAIL".
type fakeCompressor struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
}

func (f *fakeCompressor) Compress(ctx context.Context, data []byte, opts compressor.Options) (*compressor.Blob, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if bytes.HasPrefix(data, []byte("FAIL")) {
		return nil, errors.New("corrupt input")
	}
	return &compressor.Blob{
		Data:      append([]byte("squeezed:"), data...),
		MediaType: "image/jpeg",
	}, nil
}

func (f *fakeCompressor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestOrchestrator(comp compressor.Compressor) *Orchestrator {
	log := logrus.New()
	log.SetOutput(io.Discard)
	opts := compressor.Options{MaxSizeMB: 1, MaxDimensionPx: 1920}
	supported := []string{"image/jpeg", "image/jpg", "image/png"}
	return NewOrchestrator(comp, opts, supported, log, statistics.New())
}

func TestCompressAll_MixedOutcomes(t *testing.T) {
	orch := newTestOrchestrator(&fakeCompressor{})

	files := []SourceFile{
		srcFile("a.jpg", "image/jpeg"),
		srcFile("b.bmp", "image/bmp"),
		{Name: "c.jpg", MediaType: "image/jpeg", Size: 7, ModTime: time.Unix(1700000000, 0), Data: []byte("FAILpic")},
	}

	results, err := orch.CompressAll(context.Background(), files, 0.7)
	require.NoError(t, err)
	require.Len(t, results, len(files))

	for i := range files {
		assert.Equal(t, files[i].Name, results[i].Original.Name, "order must be preserved")
		assert.Equal(t, files[i].Key(), results[i].Key)
	}

	assert.Equal(t, OutcomeCompressed, results[0].Outcome)
	require.NotNil(t, results[0].Blob)
	assert.Equal(t, []byte("squeezed:a.jpg"), results[0].Blob.Data)
	assert.Equal(t, 0.7, results[0].Quality)

	assert.Equal(t, OutcomeUnsupported, results[1].Outcome)
	assert.Nil(t, results[1].Blob)

	assert.Equal(t, OutcomeError, results[2].Outcome)
	assert.Nil(t, results[2].Blob)
	assert.Contains(t, results[2].Err, "corrupt input")

	// The archive built from this batch contains exactly the one
	// compressed entry.
	data, err := BuildArchive(results, "compressed-")
	require.NoError(t, err)
	entries := readArchive(t, data)
	require.Len(t, entries, 1)
	assert.Contains(t, entries, "compressed-a.jpeg")
}

func TestCompressAll_OrderPreservedUnderConcurrency(t *testing.T) {
	orch := newTestOrchestrator(&fakeCompressor{delay: 5 * time.Millisecond})

	files := make([]SourceFile, 20)
	for i := range files {
		files[i] = srcFile(string(rune('a'+i))+".jpg", "image/jpeg")
	}

	results, err := orch.CompressAll(context.Background(), files, 0.5)
	require.NoError(t, err)
	require.Len(t, results, len(files))
	for i := range files {
		assert.Equal(t, files[i].Name, results[i].Original.Name)
	}
}

func TestCompressAll_UnsupportedNeverReachesCompressor(t *testing.T) {
	fake := &fakeCompressor{}
	orch := newTestOrchestrator(fake)

	files := []SourceFile{
		srcFile("a.bmp", "image/bmp"),
		srcFile("b.tiff", "image/tiff"),
	}

	results, err := orch.CompressAll(context.Background(), files, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, item := range results {
		assert.Equal(t, OutcomeUnsupported, item.Outcome)
	}
	assert.Equal(t, 0, fake.callCount())
}

func TestCompressAll_EmptyBatch(t *testing.T) {
	orch := newTestOrchestrator(&fakeCompressor{})

	results, err := orch.CompressAll(context.Background(), nil, 0.7)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCompressAll_ClampsQuality(t *testing.T) {
	orch := newTestOrchestrator(&fakeCompressor{})

	results, err := orch.CompressAll(context.Background(), []SourceFile{srcFile("a.jpg", "image/jpeg")}, 0.95)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, compressor.MaxQuality, results[0].Quality)
}

func TestRecompress_Success(t *testing.T) {
	orch := newTestOrchestrator(&fakeCompressor{})

	item := orch.Recompress(context.Background(), srcFile("a.jpg", "image/jpeg"), 0.3)
	assert.Equal(t, OutcomeCompressed, item.Outcome)
	assert.Equal(t, 0.3, item.Quality)
	require.NotNil(t, item.Blob)
}

func TestRecompress_FailureSurfacesErrorOutcome(t *testing.T) {
	orch := newTestOrchestrator(&fakeCompressor{})

	f := SourceFile{Name: "a.jpg", MediaType: "image/jpeg", ModTime: time.Unix(1700000000, 0), Data: []byte("FAIL")}
	item := orch.Recompress(context.Background(), f, 0.3)
	assert.Equal(t, OutcomeError, item.Outcome)
	assert.Contains(t, item.Err, "corrupt input")
}

func TestSupports(t *testing.T) {
	orch := newTestOrchestrator(&fakeCompressor{})

	assert.True(t, orch.Supports("image/jpeg"))
	assert.True(t, orch.Supports("IMAGE/PNG"))
	assert.False(t, orch.Supports("image/bmp"))
	assert.False(t, orch.Supports(""))
}
