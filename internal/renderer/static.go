package renderer

import (
	"context"
	"fmt"

	"github.com/dsmetrics/tplscan/internal/analysis"
	"github.com/dsmetrics/tplscan/internal/scan"
)

// Disabled is a renderer that always fails with ErrRendererDisabled. It
// stands in when headless rendering is switched off.
type Disabled struct{}

// Snapshot always returns ErrRendererDisabled.
func (Disabled) Snapshot(context.Context, string, scan.ViewportSpec) (analysis.DOMSnapshot, error) {
	return analysis.DOMSnapshot{}, ErrRendererDisabled
}

// Static serves pre-built snapshots keyed by url and viewport name, for
// tests and offline replay.
type Static struct {
	Snapshots map[string]analysis.DOMSnapshot
}

// Key builds the lookup key for a (url, viewport) pair.
func Key(url, viewport string) string {
	return url + "|" + viewport
}

// Snapshot returns the canned snapshot for the unit or an error when none
// is registered.
func (s Static) Snapshot(_ context.Context, url string, viewport scan.ViewportSpec) (analysis.DOMSnapshot, error) {
	snap, ok := s.Snapshots[Key(url, viewport.Name)]
	if !ok {
		return analysis.DOMSnapshot{}, fmt.Errorf("no snapshot for %s at %s", url, viewport.Name)
	}
	return snap, nil
}
