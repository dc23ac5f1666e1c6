package renderer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dsmetrics/tplscan/internal/analysis"
	"github.com/dsmetrics/tplscan/internal/scan"
)

// samplePayload mirrors the object shape the extraction script returns.
const samplePayload = `{
	"elements": [
		{
			"tagName": "div",
			"id": "hero",
			"classTokens": ["tpl-hero", "wide"],
			"boundingBox": {"x": 0, "y": 120, "width": 1280, "height": 480},
			"isVisible": true,
			"inViewport": true
		}
	],
	"bodyScrollWidth": 1280,
	"bodyScrollHeight": 4000,
	"documentScrollWidth": 1280,
	"documentScrollHeight": 4200,
	"scrollX": 0,
	"scrollY": 120,
	"viewportWidth": 1280,
	"viewportHeight": 800
}`

func TestExtractionPayloadDecodesIntoSnapshot(t *testing.T) {
	t.Parallel()

	var snap analysis.DOMSnapshot
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &snap))

	require.Len(t, snap.Elements, 1)
	el := snap.Elements[0]
	require.Equal(t, "div", el.TagName)
	require.Equal(t, []string{"tpl-hero", "wide"}, el.ClassTokens)
	require.Equal(t, 1280.0, el.BoundingBox.Width)
	require.True(t, el.IsVisible)

	// Page area takes the larger scroll dimension per axis.
	require.Equal(t, 1280.0*4200.0, snap.PageArea())
	require.Equal(t, analysis.Offset{Y: 120}, snap.ScrollOffset())
}

func TestExtractScriptShape(t *testing.T) {
	t.Parallel()

	// The script must be a self-invoking expression so Evaluate returns its
	// value, and must emit every field the snapshot decoder expects.
	require.True(t, strings.HasPrefix(extractScript, "(() => {"))
	require.True(t, strings.HasSuffix(extractScript, "})()"))
	for _, field := range []string{
		"tagName", "classTokens", "boundingBox", "isVisible", "inViewport",
		"bodyScrollWidth", "bodyScrollHeight", "documentScrollWidth",
		"documentScrollHeight", "scrollX", "scrollY", "viewportWidth", "viewportHeight",
	} {
		require.Contains(t, extractScript, field)
	}
}

func TestStaticRenderer(t *testing.T) {
	t.Parallel()

	want := analysis.DOMSnapshot{BodyScrollWidth: 10, BodyScrollHeight: 10}
	r := Static{Snapshots: map[string]analysis.DOMSnapshot{
		Key("https://example.com", "desktop"): want,
	}}

	got, err := r.Snapshot(context.Background(), "https://example.com", scan.ViewportSpec{Name: "desktop"})
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = r.Snapshot(context.Background(), "https://example.com", scan.ViewportSpec{Name: "mobile"})
	require.Error(t, err)
}

func TestDisabledRenderer(t *testing.T) {
	t.Parallel()

	_, err := Disabled{}.Snapshot(context.Background(), "https://example.com", scan.ViewportSpec{Name: "desktop"})
	require.ErrorIs(t, err, ErrRendererDisabled)
}
