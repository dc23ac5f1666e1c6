// Package local persists run reports to the local filesystem, organized by
// collection date.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsmetrics/tplscan/internal/scan"
)

// Sink writes date-partitioned JSON reports under a root directory.
type Sink struct {
	root string
}

// NewSink creates the root directory if needed and returns a Sink.
func NewSink(root string) (*Sink, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	return &Sink{root: root}, nil
}

// SaveRun writes the run summary to <root>/<date>/summary.json.
func (s *Sink) SaveRun(ctx context.Context, run scan.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if run.Date == "" {
		return fmt.Errorf("run date is required")
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	target := filepath.Join(s.root, run.Date, "summary.json")
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("write summary to %s: %w", target, err)
	}
	return nil
}

// LatestRun loads the newest summary.json under the root.
func (s *Sink) LatestRun(ctx context.Context) (scan.RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return scan.RunSummary{}, fmt.Errorf("context canceled: %w", err)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return scan.RunSummary{}, fmt.Errorf("read sink dir: %w", err)
	}
	latest := ""
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// Date directories sort lexicographically in chronological order.
		if entry.Name() > latest {
			latest = entry.Name()
		}
	}
	if latest == "" {
		return scan.RunSummary{}, fmt.Errorf("under %s: %w", s.root, scan.ErrNoRuns)
	}
	data, err := os.ReadFile(filepath.Join(s.root, latest, "summary.json"))
	if err != nil {
		return scan.RunSummary{}, fmt.Errorf("read summary: %w", err)
	}
	var run scan.RunSummary
	if err := json.Unmarshal(data, &run); err != nil {
		return scan.RunSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	return run, nil
}

// PutObject writes a detail blob beneath the root and returns a file:// URI.
// The cleaned path must stay within the root.
func (s *Sink) PutObject(ctx context.Context, path string, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	full := filepath.Join(s.root, path)
	cleanRoot := filepath.Clean(s.root)
	if !strings.HasPrefix(filepath.Clean(full), cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create detail dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("write detail to %s: %w", full, err)
	}
	return "file://" + full, nil
}
