package scanner

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dsmetrics/tplscan/internal/analysis"
	"github.com/dsmetrics/tplscan/internal/renderer"
	"github.com/dsmetrics/tplscan/internal/scan"
	memorypublisher "github.com/dsmetrics/tplscan/internal/publisher/memory"
	"github.com/dsmetrics/tplscan/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedID struct{ id string }

func (g fixedID) NewID() (string, error) { return g.id, nil }

// recordingRenderer remembers the order units were visited in.
type recordingRenderer struct {
	inner scan.Renderer

	mu     sync.Mutex
	visits []string
}

func (r *recordingRenderer) Snapshot(ctx context.Context, url string, vp scan.ViewportSpec) (analysis.DOMSnapshot, error) {
	r.mu.Lock()
	r.visits = append(r.visits, vp.Name)
	r.mu.Unlock()
	return r.inner.Snapshot(ctx, url, vp)
}

// snapshotWithButton is a 1000x1000 page with one 200x500 tpl element, so
// total coverage through the real pipeline comes out at 10%.
func snapshotWithButton() analysis.DOMSnapshot {
	return analysis.DOMSnapshot{
		Elements: []analysis.ElementDescriptor{
			{
				TagName:     "button",
				ClassTokens: []string{"tpl-button", "layout"},
				BoundingBox: analysis.Rect{X: 0, Y: 0, Width: 200, Height: 500},
				IsVisible:   true,
				InViewport:  true,
			},
		},
		BodyScrollWidth:  1000,
		BodyScrollHeight: 1000,
		ViewportWidth:    1000,
		ViewportHeight:   1000,
	}
}

func testPages() []scan.PageConfig {
	return []scan.PageConfig{
		{Name: "home", URL: "https://example.com/", Type: "landing", Section: "marketing"},
		{Name: "pricing", URL: "https://example.com/pricing", Type: "detail", Section: "marketing"},
	}
}

func testViewports() []scan.ViewportSpec {
	return []scan.ViewportSpec{
		{Name: "mobile", Width: 375, Height: 667, DeviceType: "mobile", Priority: 1},
		{Name: "desktop", Width: 1440, Height: 900, DeviceType: "desktop", Priority: 3},
	}
}

func testConfig() Config {
	return Config{
		Marker:          analysis.DefaultMarker,
		ExcludePrefixes: analysis.DefaultExcludePrefixes,
		TopComponents:   3,
		Thresholds:      scan.Thresholds{High: 60, Medium: 30},
		Topic:           "coverage-runs",
		DetailPrefix:    "pages",
	}
}

func fullStatic(pages []scan.PageConfig, viewports []scan.ViewportSpec) renderer.Static {
	snaps := make(map[string]analysis.DOMSnapshot)
	for _, page := range pages {
		for _, vp := range viewports {
			snaps[renderer.Key(page.URL, vp.Name)] = snapshotWithButton()
		}
	}
	return renderer.Static{Snapshots: snaps}
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	pages := testPages()
	viewports := testViewports()
	runStore := memory.NewRunStore()
	blobStore := memory.NewBlobStore()
	publisher := memorypublisher.New()
	clock := fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}

	s := New(
		fullStatic(pages, viewports),
		runStore, blobStore, publisher,
		clock, fixedID{id: "run-42"},
		pages, viewports, testConfig(), zap.NewNop(),
	)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, "run-42", summary.RunID)
	require.Equal(t, "2025-06-02", summary.Date)
	require.Equal(t, 2, summary.PagesScanned)
	require.Equal(t, 0, summary.PagesFailed)
	require.InDelta(t, 10.0, summary.AverageCoverage, 0.001)
	require.Equal(t, 2, summary.LowCoverage)
	require.Equal(t, []string{"tpl-button"}, summary.TopComponents)

	saved, err := runStore.LatestRun(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-42", saved.RunID)

	for _, report := range summary.Pages {
		require.False(t, report.AllViewportsFailed)
		require.NotNil(t, report.CrossViewport)
		require.Len(t, report.Viewports, 2)
		for _, vr := range report.Viewports {
			require.True(t, vr.Succeeded())
			require.InDelta(t, 10.0, vr.Summary.TPLCoverage, 0.001)
		}
	}

	// Detail blobs are written per unit under the date directory.
	data, ok := blobStore.Object("pages/2025-06-02/home-desktop.json")
	require.True(t, ok)
	var detail analysis.PageDetail
	require.NoError(t, json.Unmarshal(data, &detail))
	require.Equal(t, "https://example.com/", detail.URL)
	require.InDelta(t, 10.0, detail.TPLCoverage, 0.001)

	require.Len(t, publisher.Messages(), 1)
	require.Equal(t, "coverage-runs", publisher.Messages()[0].Topic)
}

func TestRunVisitsViewportsByPriority(t *testing.T) {
	t.Parallel()

	pages := testPages()[:1]
	viewports := testViewports()
	rec := &recordingRenderer{inner: fullStatic(pages, viewports)}

	s := New(
		rec,
		memory.NewRunStore(), nil, nil,
		fixedClock{now: time.Now()}, fixedID{id: "run-1"},
		pages, viewports, testConfig(), zap.NewNop(),
	)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"desktop", "mobile"}, rec.visits)
}

func TestRunIsolatesViewportFailure(t *testing.T) {
	t.Parallel()

	pages := testPages()[:1]
	viewports := testViewports()

	// Only the desktop unit has a snapshot; mobile fails to capture.
	snaps := map[string]analysis.DOMSnapshot{
		renderer.Key(pages[0].URL, "desktop"): snapshotWithButton(),
	}

	s := New(
		renderer.Static{Snapshots: snaps},
		memory.NewRunStore(), nil, nil,
		fixedClock{now: time.Now()}, fixedID{id: "run-1"},
		pages, viewports, testConfig(), zap.NewNop(),
	)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.PagesScanned)
	require.Equal(t, 0, summary.PagesFailed)

	report := summary.Pages[0]
	require.False(t, report.AllViewportsFailed)
	require.NotNil(t, report.CrossViewport)

	require.True(t, report.Viewports["desktop"].Succeeded())
	require.False(t, report.Viewports["mobile"].Succeeded())
	require.NotEmpty(t, report.Viewports["mobile"].CaptureError)
}

func TestRunMarksPageWhenAllViewportsFail(t *testing.T) {
	t.Parallel()

	pages := testPages()[:1]

	s := New(
		renderer.Disabled{},
		memory.NewRunStore(), nil, nil,
		fixedClock{now: time.Now()}, fixedID{id: "run-1"},
		pages, testViewports(), testConfig(), zap.NewNop(),
	)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, summary.PagesScanned)
	require.Equal(t, 1, summary.PagesFailed)

	report := summary.Pages[0]
	require.True(t, report.AllViewportsFailed)
	require.Nil(t, report.CrossViewport)
	for _, vr := range report.Viewports {
		require.False(t, vr.Succeeded())
		require.NotEmpty(t, vr.CaptureError)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	pages := testPages()
	viewports := testViewports()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(
		fullStatic(pages, viewports),
		memory.NewRunStore(), nil, nil,
		fixedClock{now: time.Now()}, fixedID{id: "run-1"},
		pages, viewports, testConfig(), zap.NewNop(),
	)

	summary, err := s.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, summary.Pages)
}

func TestDetailPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pages/2025-06-02/home-mobile.json", detailPath("pages", "2025-06-02", "home", "mobile"))
	require.Equal(t, "2025-06-02/home-mobile.json", detailPath("", "2025-06-02", "home", "mobile"))
}
