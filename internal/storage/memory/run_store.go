// Package memory provides in-memory persistence for development/testing and
// the API's latest-run cache.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/dsmetrics/tplscan/internal/scan"
)

// ErrNoRuns aliases the shared not-found sentinel for callers importing only
// this package.
var ErrNoRuns = scan.ErrNoRuns

// RunStore keeps run summaries in memory, newest last.
type RunStore struct {
	mu   sync.RWMutex
	runs []scan.RunSummary
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{}
}

// SaveRun appends a run summary.
func (s *RunStore) SaveRun(_ context.Context, run scan.RunSummary) error {
	if run.RunID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// LatestRun returns the most recently saved run.
func (s *RunStore) LatestRun(_ context.Context) (scan.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return scan.RunSummary{}, ErrNoRuns
	}
	return s.runs[len(s.runs)-1], nil
}

// Runs returns a copy of all recorded runs, oldest first.
func (s *RunStore) Runs() []scan.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scan.RunSummary, len(s.runs))
	copy(out, s.runs)
	return out
}

// BlobStore keeps written objects in memory keyed by path.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewBlobStore constructs a BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// PutObject stores data under path and returns a mem:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

// Object returns the stored bytes for path.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return data, ok
}
