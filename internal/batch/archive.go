package batch

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// imageExtensions are the suffixes stripped when deriving archive entry
// names. Matching is case-insensitive.
var imageExtensions = []string{
	".jpeg", ".jpg", ".png", ".webp", ".gif", ".bmp", ".tiff", ".tif",
}

// BuildArchive packages every compressed item of the result batch into a
// single zip archive. Entry bytes are written verbatim. Zero compressed
// items yields a valid empty archive, not an error.
func BuildArchive(results ResultBatch, prefix string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, item := range results {
		if item.Outcome != OutcomeCompressed || item.Blob == nil {
			continue
		}
		w, err := zw.Create(ArchiveEntryName(item, prefix))
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("create archive entry: %w", err)
		}
		if _, err := w.Write(item.Blob.Data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("write archive entry: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// ArchiveEntryName derives the archive entry name for a result item: the
// original filename with its image extension stripped (case-insensitive),
// plus the subtype of the compressed blob's media type. Blobs without a
// declared media type fall back to "jpeg".
func ArchiveEntryName(item ResultItem, prefix string) string {
	base := stripImageExtension(item.Original.Name)
	sub := "jpeg"
	if item.Blob != nil {
		if s := mediaSubtype(item.Blob.MediaType); s != "" {
			sub = s
		}
	}
	return prefix + base + "." + sub
}

func stripImageExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

func mediaSubtype(mediaType string) string {
	mt := normalizeMediaType(mediaType)
	if i := strings.Index(mt, "/"); i >= 0 && i+1 < len(mt) {
		return mt[i+1:]
	}
	return ""
}
