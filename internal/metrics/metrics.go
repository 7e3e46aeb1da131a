// Package metrics exposes Prometheus collectors for the compression
// workflow. Collectors are registered on the default registry and served by
// the web server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImagesProcessed counts images resolved by compression passes, by
	// outcome (compressed, unsupported, error).
	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_squeezer_images_processed_total",
		Help: "Images processed by compression passes, by outcome.",
	}, []string{"outcome"})

	// BytesIn counts original bytes accepted for compression.
	BytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_squeezer_bytes_in_total",
		Help: "Original bytes accepted for compression.",
	})

	// BytesOut counts compressed bytes produced.
	BytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_squeezer_bytes_out_total",
		Help: "Compressed bytes produced.",
	})

	// PassDuration observes wall-clock duration of full-batch passes.
	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_squeezer_pass_duration_seconds",
		Help:    "Wall-clock duration of full-batch compression passes.",
		Buckets: prometheus.DefBuckets,
	})

	// ActivePasses tracks full-batch passes currently in flight.
	ActivePasses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "image_squeezer_active_passes",
		Help: "Full-batch compression passes currently in flight.",
	})

	// ArchivesBuilt counts zip archives built for download.
	ArchivesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_squeezer_archives_built_total",
		Help: "Zip archives built for download.",
	})
)
