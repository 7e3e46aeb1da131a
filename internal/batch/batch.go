// Package batch implements the image compression workflow: selection
// filtering of user-provided files, the concurrent compression pass over a
// batch, per-session result state and zip packaging of compressed results.
package batch

import (
	"fmt"
	"strings"
	"time"

	"image-squeezer-go/internal/compressor"
)

// SourceFile is a single user-provided file. The workflow only reads it.
type SourceFile struct {
	Name      string
	MediaType string
	Size      int64
	ModTime   time.Time
	Data      []byte
}

// Key returns the identity used to address the file's result item. It is
// derived from name and modification time and is not guaranteed globally
// unique: two distinct files sharing both will collide.
func (f SourceFile) Key() string {
	return fmt.Sprintf("%s-%d", f.Name, f.ModTime.UnixMilli())
}

// Outcome tags the result of compressing one file.
type Outcome string

const (
	// OutcomeCompressed means the file was compressed successfully.
	OutcomeCompressed Outcome = "compressed"
	// OutcomeUnsupported means the file's media type is not supported and
	// compression was never attempted.
	OutcomeUnsupported Outcome = "unsupported"
	// OutcomeError means the compressor failed for this file.
	OutcomeError Outcome = "error"
)

// ResultItem is the per-file outcome of a compression pass.
type ResultItem struct {
	Key      string
	Original SourceFile
	Outcome  Outcome
	// Blob holds the compressed image for OutcomeCompressed items.
	Blob *compressor.Blob
	// Quality is the effective quality the blob was encoded at.
	Quality float64
	// Err carries the failure detail for OutcomeError items.
	Err string
}

// ResultBatch is an ordered sequence of result items, one-to-one and
// order-preserving with the input files of the pass that produced it.
type ResultBatch []ResultItem

// CompressedCount returns the number of successfully compressed items.
func (rb ResultBatch) CompressedCount() int {
	n := 0
	for _, item := range rb {
		if item.Outcome == OutcomeCompressed {
			n++
		}
	}
	return n
}

// Select applies the selection filter to a raw candidate list: files whose
// declared media type matches none of the accept patterns are dropped, and
// the survivors are truncated to the first limit entries in original order.
// Patterns are exact media types or prefix wildcards such as "image/*".
// An empty result is not an error.
func Select(candidates []SourceFile, accept []string, limit int) []SourceFile {
	selected := make([]SourceFile, 0, len(candidates))
	for _, f := range candidates {
		if !TypeMatches(f.MediaType, accept) {
			continue
		}
		selected = append(selected, f)
		if limit > 0 && len(selected) == limit {
			break
		}
	}
	return selected
}

// TypeMatches reports whether the media type matches any of the patterns.
func TypeMatches(mediaType string, patterns []string) bool {
	mt := normalizeMediaType(mediaType)
	if mt == "" {
		return false
	}
	for _, p := range patterns {
		p = normalizeMediaType(p)
		if strings.HasSuffix(p, "/*") {
			if strings.HasPrefix(mt, strings.TrimSuffix(p, "*")) {
				return true
			}
		} else if mt == p {
			return true
		}
	}
	return false
}

// normalizeMediaType lowercases the type and strips any parameters, so
// "image/JPEG; charset=binary" matches "image/jpeg".
func normalizeMediaType(t string) string {
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
