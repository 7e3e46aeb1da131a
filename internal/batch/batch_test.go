package batch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func srcFile(name, mediaType string) SourceFile {
	return SourceFile{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(name)),
		ModTime:   time.Unix(1700000000, 0),
		Data:      []byte(name),
	}
}

func TestSelect_DropsUnacceptedTypes(t *testing.T) {
	candidates := []SourceFile{
		srcFile("a.jpg", "image/jpeg"),
		srcFile("doc.pdf", "application/pdf"),
		srcFile("b.bmp", "image/bmp"),
		srcFile("clip.mp4", "video/mp4"),
	}

	selected := Select(candidates, []string{"image/*"}, 20)

	assert.Len(t, selected, 2)
	assert.Equal(t, "a.jpg", selected[0].Name)
	assert.Equal(t, "b.bmp", selected[1].Name)
}

func TestSelect_TruncatesToLimit(t *testing.T) {
	candidates := make([]SourceFile, 25)
	for i := range candidates {
		candidates[i] = srcFile(fmt.Sprintf("img-%02d.jpg", i), "image/jpeg")
	}

	selected := Select(candidates, []string{"image/*"}, 20)

	assert.Len(t, selected, 20)
	for i, f := range selected {
		assert.Equal(t, fmt.Sprintf("img-%02d.jpg", i), f.Name, "order must be preserved")
	}
}

func TestSelect_ExactTypeList(t *testing.T) {
	candidates := []SourceFile{
		srcFile("a.jpg", "image/jpeg"),
		srcFile("b.png", "image/png"),
	}

	selected := Select(candidates, []string{"image/jpeg", "image/jpg"}, 20)

	assert.Len(t, selected, 1)
	assert.Equal(t, "a.jpg", selected[0].Name)
}

func TestSelect_EmptyResult(t *testing.T) {
	candidates := []SourceFile{
		srcFile("doc.pdf", "application/pdf"),
	}

	selected := Select(candidates, []string{"image/*"}, 20)
	assert.Empty(t, selected)
}

func TestTypeMatches(t *testing.T) {
	tests := []struct {
		mediaType string
		patterns  []string
		want      bool
	}{
		{"image/jpeg", []string{"image/*"}, true},
		{"image/jpeg", []string{"image/jpeg"}, true},
		{"IMAGE/JPEG", []string{"image/jpeg"}, true},
		{"image/jpeg; charset=binary", []string{"image/jpeg"}, true},
		{"image/png", []string{"image/jpeg", "image/jpg"}, false},
		{"application/pdf", []string{"image/*"}, false},
		{"", []string{"image/*"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeMatches(tt.mediaType, tt.patterns))
		})
	}
}

func TestSourceFileKey(t *testing.T) {
	f := srcFile("photo.jpg", "image/jpeg")
	g := srcFile("photo.jpg", "image/jpeg")
	h := f
	h.ModTime = f.ModTime.Add(time.Second)

	assert.Equal(t, f.Key(), g.Key(), "same name and mod time collide by design")
	assert.NotEqual(t, f.Key(), h.Key())
}

func TestResultBatchCompressedCount(t *testing.T) {
	rb := ResultBatch{
		{Outcome: OutcomeCompressed},
		{Outcome: OutcomeUnsupported},
		{Outcome: OutcomeError},
		{Outcome: OutcomeCompressed},
	}
	assert.Equal(t, 2, rb.CompressedCount())
}
