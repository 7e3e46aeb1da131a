package batch

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"image-squeezer-go/internal/compressor"
	"image-squeezer-go/internal/metrics"
	"image-squeezer-go/internal/statistics"
)

// Orchestrator drives compression passes over batches of files.
// It holds no per-batch state of its own; pass results are committed to a
// Session by the caller.
type Orchestrator struct {
	comp      compressor.Compressor
	opts      compressor.Options
	supported map[string]struct{}
	log       *logrus.Logger
	stats     *statistics.Statistics
}

// NewOrchestrator creates a new Orchestrator. opts carries the size and
// dimension caps; its Quality field is overridden per pass. supportedTypes
// is the precise media type set the compressor accepts.
func NewOrchestrator(comp compressor.Compressor, opts compressor.Options, supportedTypes []string, log *logrus.Logger, stats *statistics.Statistics) *Orchestrator {
	supported := make(map[string]struct{}, len(supportedTypes))
	for _, t := range supportedTypes {
		supported[normalizeMediaType(t)] = struct{}{}
	}
	return &Orchestrator{
		comp:      comp,
		opts:      opts,
		supported: supported,
		log:       log,
		stats:     stats,
	}
}

// Supports reports whether the media type is accepted by the compressor.
func (o *Orchestrator) Supports(mediaType string) bool {
	_, ok := o.supported[normalizeMediaType(mediaType)]
	return ok
}

// CompressAll runs a full-batch pass: every file is compressed concurrently
// at the given quality, per-file failures are recorded as error outcomes and
// never abort sibling files. The returned batch has the same order and
// length as files. The only returned error is context cancellation.
func (o *Orchestrator) CompressAll(ctx context.Context, files []SourceFile, quality float64) (ResultBatch, error) {
	results := make(ResultBatch, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			results[i] = o.compressOne(ctx, f, quality)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.stats.AddFilesReceived(int64(len(files)))
	return results, nil
}

// Recompress re-runs a single file at a new quality. A failure surfaces as
// an error outcome, same as in the full-batch pass.
func (o *Orchestrator) Recompress(ctx context.Context, f SourceFile, quality float64) ResultItem {
	return o.compressOne(ctx, f, quality)
}

// compressOne resolves one file to exactly one of the three outcomes.
func (o *Orchestrator) compressOne(ctx context.Context, f SourceFile, quality float64) ResultItem {
	item := ResultItem{Key: f.Key(), Original: f}

	if !o.Supports(f.MediaType) {
		item.Outcome = OutcomeUnsupported
		o.stats.IncrementFilesUnsupported()
		metrics.ImagesProcessed.WithLabelValues(string(OutcomeUnsupported)).Inc()
		o.log.WithFields(logrus.Fields{
			"file":       f.Name,
			"media_type": f.MediaType,
		}).Debug("Skipping unsupported media type")
		return item
	}

	opts := o.opts
	opts.Quality = compressor.ClampQuality(quality)

	blob, err := o.comp.Compress(ctx, f.Data, opts)
	if err != nil {
		item.Outcome = OutcomeError
		item.Err = err.Error()
		o.stats.IncrementFilesFailed()
		o.stats.AddError(f.Name, "compress", err.Error())
		metrics.ImagesProcessed.WithLabelValues(string(OutcomeError)).Inc()
		o.log.WithField("file", f.Name).Warnf("Compression failed: %v", err)
		return item
	}

	item.Outcome = OutcomeCompressed
	item.Blob = blob
	item.Quality = opts.Quality
	o.stats.IncrementFilesCompressed()
	o.stats.AddBytesIn(f.Size)
	o.stats.AddBytesOut(blob.Size())
	metrics.ImagesProcessed.WithLabelValues(string(OutcomeCompressed)).Inc()
	metrics.BytesIn.Add(float64(f.Size))
	metrics.BytesOut.Add(float64(blob.Size()))
	return item
}
