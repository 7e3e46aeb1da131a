package statistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	s := New()

	s.AddFilesReceived(3)
	s.IncrementFilesCompressed()
	s.IncrementFilesUnsupported()
	s.IncrementFilesFailed()
	s.IncrementPassesRun()
	s.IncrementPassesSuperseded()
	s.IncrementArchivesBuilt()
	s.AddBytesIn(1000)
	s.AddBytesOut(250)

	snap := s.Snapshot()
	assert.Equal(t, int64(3), snap["files_received"])
	assert.Equal(t, int64(1), snap["files_compressed"])
	assert.Equal(t, int64(1), snap["files_unsupported"])
	assert.Equal(t, int64(1), snap["files_failed"])
	assert.Equal(t, int64(1), snap["passes_run"])
	assert.Equal(t, int64(1), snap["passes_superseded"])
	assert.Equal(t, int64(1), snap["archives_built"])
	assert.Equal(t, 75.0, snap["saved_percent"])
}

func TestSavedPercent(t *testing.T) {
	s := New()
	assert.Equal(t, 0.0, s.SavedPercent(), "no data")

	s.AddBytesIn(100)
	s.AddBytesOut(150)
	assert.Equal(t, 0.0, s.SavedPercent(), "output larger than input")

	s = New()
	s.AddBytesIn(200)
	s.AddBytesOut(50)
	assert.Equal(t, 75.0, s.SavedPercent())
}

func TestGetSummary(t *testing.T) {
	s := New()
	s.AddFilesReceived(2)
	s.IncrementFilesCompressed()
	s.IncrementFilesFailed()

	summary := s.GetSummary()
	assert.Contains(t, summary, "Received: 2")
	assert.Contains(t, summary, "Compressed: 1")
	assert.Contains(t, summary, "Failed: 1")
}

func TestGetErrorSummary(t *testing.T) {
	s := New()
	assert.Contains(t, s.GetErrorSummary(), "No errors")

	s.AddError("a.jpg", "compress", "corrupt input")
	summary := s.GetErrorSummary()
	assert.Contains(t, summary, "a.jpg")
	assert.Contains(t, summary, "corrupt input")
}
