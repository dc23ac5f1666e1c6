package scan

import (
	"context"
	"errors"
	"time"

	"github.com/dsmetrics/tplscan/internal/analysis"
)

// ErrNoRuns indicates no collection run has been recorded yet.
var ErrNoRuns = errors.New("no runs recorded")

// Renderer produces a DOM snapshot for one (url, viewport) unit. A failed
// render is reported as an error and recorded as a CaptureFailure for that
// unit only.
type Renderer interface {
	Snapshot(ctx context.Context, url string, viewport ViewportSpec) (analysis.DOMSnapshot, error)
}

// RunStore persists run summaries and serves the most recent one.
type RunStore interface {
	SaveRun(ctx context.Context, run RunSummary) error
	LatestRun(ctx context.Context) (RunSummary, error)
}

// BlobStore writes detailed page records and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Discoverer expands a section root URL into candidate page URLs.
type Discoverer interface {
	Discover(ctx context.Context, rootURL string, limit int) ([]string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
