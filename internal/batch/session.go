package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the state container for one user's workflow: the selected
// files, the current result batch, the batch-wide quality, and the pass
// bookkeeping that makes overlapping full-batch passes safe.
//
// Full-batch passes are supersede-able: BeginPass bumps a generation
// counter, and CommitPass only installs results carrying the latest
// generation. A slow stale pass therefore never overwrites a newer one.
// Results are replaced wholesale on commit; until then the previous batch
// stays visible, except that an empty selection clears it immediately so
// stale previews never linger.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu       sync.RWMutex
	files    []SourceFile
	results  ResultBatch
	quality  float64
	gen      int64
	inflight int
}

// NewSession creates a session with the given batch-wide quality.
func NewSession(quality float64) *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		quality:   quality,
	}
}

// BeginPass installs a new batch, replacing the previous one, and returns
// the generation token of the pass about to run.
func (s *Session) BeginPass(files []SourceFile) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = files
	if len(files) == 0 {
		s.results = nil
	}
	s.gen++
	s.inflight++
	return s.gen
}

// CommitPass installs the results of the pass identified by gen. It reports
// whether the commit happened; a pass whose generation has been superseded
// by a newer BeginPass is discarded.
func (s *Session) CommitPass(gen int64, results ResultBatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		s.inflight--
	}
	if gen != s.gen {
		return false
	}
	s.results = results
	return true
}

// AbortPass marks a pass as finished without committing its results.
func (s *Session) AbortPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		s.inflight--
	}
}

// Processing reports whether any pass is in flight.
func (s *Session) Processing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Quality returns the batch-wide quality.
func (s *Session) Quality() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quality
}

// SetQuality updates the batch-wide quality.
func (s *Session) SetQuality(q float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = q
}

// Files returns a copy of the current batch.
func (s *Session) Files() []SourceFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]SourceFile, len(s.files))
	copy(files, s.files)
	return files
}

// Results returns a copy of the current result batch.
func (s *Session) Results() ResultBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make(ResultBatch, len(s.results))
	copy(results, s.results)
	return results
}

// Item returns the result item at index.
func (s *Session) Item(index int) (ResultItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.results) {
		return ResultItem{}, fmt.Errorf("item index out of range: %d", index)
	}
	return s.results[index], nil
}

// ReplaceItem replaces exactly one result item in place, leaving all other
// items untouched. Used by the single-item re-run path.
func (s *Session) ReplaceItem(index int, item ResultItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.results) {
		return fmt.Errorf("item index out of range: %d", index)
	}
	s.results[index] = item
	return nil
}
