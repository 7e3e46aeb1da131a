package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains counters for compression work across passes.
type Statistics struct {
	FilesReceived    int64
	FilesCompressed  int64
	FilesUnsupported int64
	FilesFailed      int64

	PassesRun        int64
	PassesSuperseded int64
	ArchivesBuilt    int64

	BytesIn  int64
	BytesOut int64

	StartTime time.Time

	mutex  sync.RWMutex
	Errors []StatError
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FileName  string
	Operation string
	Error     string
	Timestamp time.Time
}

// New returns a new Statistics instance.
func New() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		Errors:    make([]StatError, 0),
	}
}

// AddFilesReceived adds the given count of received files.
func (s *Statistics) AddFilesReceived(n int64) {
	atomic.AddInt64(&s.FilesReceived, n)
}

// IncrementFilesCompressed increases the count of compressed files by 1.
func (s *Statistics) IncrementFilesCompressed() {
	atomic.AddInt64(&s.FilesCompressed, 1)
}

// IncrementFilesUnsupported increases the count of unsupported files by 1.
func (s *Statistics) IncrementFilesUnsupported() {
	atomic.AddInt64(&s.FilesUnsupported, 1)
}

// IncrementFilesFailed increases the count of failed files by 1.
func (s *Statistics) IncrementFilesFailed() {
	atomic.AddInt64(&s.FilesFailed, 1)
}

// IncrementPassesRun increases the count of committed passes by 1.
func (s *Statistics) IncrementPassesRun() {
	atomic.AddInt64(&s.PassesRun, 1)
}

// IncrementPassesSuperseded increases the count of discarded passes by 1.
func (s *Statistics) IncrementPassesSuperseded() {
	atomic.AddInt64(&s.PassesSuperseded, 1)
}

// IncrementArchivesBuilt increases the count of built archives by 1.
func (s *Statistics) IncrementArchivesBuilt() {
	atomic.AddInt64(&s.ArchivesBuilt, 1)
}

// AddBytesIn adds the given number of original bytes.
func (s *Statistics) AddBytesIn(n int64) {
	atomic.AddInt64(&s.BytesIn, n)
}

// AddBytesOut adds the given number of compressed bytes.
func (s *Statistics) AddBytesOut(n int64) {
	atomic.AddInt64(&s.BytesOut, n)
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(fileName, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FileName:  fileName,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// SavedPercent returns the overall size reduction as a percentage.
func (s *Statistics) SavedPercent() float64 {
	in := atomic.LoadInt64(&s.BytesIn)
	out := atomic.LoadInt64(&s.BytesOut)
	if in <= 0 || out >= in {
		return 0
	}
	return float64(in-out) * 100 / float64(in)
}

// Snapshot returns the current counters as a map for API responses.
func (s *Statistics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"files_received":    atomic.LoadInt64(&s.FilesReceived),
		"files_compressed":  atomic.LoadInt64(&s.FilesCompressed),
		"files_unsupported": atomic.LoadInt64(&s.FilesUnsupported),
		"files_failed":      atomic.LoadInt64(&s.FilesFailed),
		"passes_run":        atomic.LoadInt64(&s.PassesRun),
		"passes_superseded": atomic.LoadInt64(&s.PassesSuperseded),
		"archives_built":    atomic.LoadInt64(&s.ArchivesBuilt),
		"bytes_in":          atomic.LoadInt64(&s.BytesIn),
		"bytes_out":         atomic.LoadInt64(&s.BytesOut),
		"saved_percent":     s.SavedPercent(),
		"uptime":            time.Since(s.StartTime).String(),
	}
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	return fmt.Sprintf(`Image Squeezer Statistics Summary:

Files:
		Received: %d
		Compressed: %d
		Unsupported: %d
		Failed: %d

Passes:
		Run: %d
		Superseded: %d
		Archives Built: %d

Size:
		Bytes In: %s
		Bytes Out: %s
		Saved: %.1f%%

Duration: %v`,
		atomic.LoadInt64(&s.FilesReceived),
		atomic.LoadInt64(&s.FilesCompressed),
		atomic.LoadInt64(&s.FilesUnsupported),
		atomic.LoadInt64(&s.FilesFailed),
		atomic.LoadInt64(&s.PassesRun),
		atomic.LoadInt64(&s.PassesSuperseded),
		atomic.LoadInt64(&s.ArchivesBuilt),
		formatBytes(atomic.LoadInt64(&s.BytesIn)),
		formatBytes(atomic.LoadInt64(&s.BytesOut)),
		s.SavedPercent(),
		time.Since(s.StartTime).Round(time.Millisecond))
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FileName,
			err.Error)
	}
	return result
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
