// Package scanner implements the scan pipeline execution loop: it walks the
// configured pages and viewports through the rendering provider, runs the
// analysis engine over each snapshot, and persists the resulting reports.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dsmetrics/tplscan/internal/analysis"
	"github.com/dsmetrics/tplscan/internal/metrics"
	"github.com/dsmetrics/tplscan/internal/scan"
)

// Config controls Scanner behavior.
type Config struct {
	Marker          string
	ExcludePrefixes []string
	TopComponents   int
	Thresholds      scan.Thresholds
	Delay           time.Duration
	Topic           string
	DetailPrefix    string
}

// Scanner walks pages x viewports sequentially through a single rendering
// session. Units are never fanned out in parallel; sequential visits with a
// politeness delay bound browser resources and request load on the target
// site.
type Scanner struct {
	renderer  scan.Renderer
	runStore  scan.RunStore
	blobStore scan.BlobStore
	publisher scan.Publisher
	clock     scan.Clock
	idGen     scan.IDGenerator
	pages     []scan.PageConfig
	viewports []scan.ViewportSpec
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Scanner. blobStore and publisher may be nil; detailed
// blob persistence and event publishing are then skipped.
func New(
	renderer scan.Renderer,
	runStore scan.RunStore,
	blobStore scan.BlobStore,
	publisher scan.Publisher,
	clock scan.Clock,
	idGen scan.IDGenerator,
	pages []scan.PageConfig,
	viewports []scan.ViewportSpec,
	cfg Config,
	logger *zap.Logger,
) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ordered := make([]scan.ViewportSpec, len(viewports))
	copy(ordered, viewports)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Priority > ordered[b].Priority
	})
	return &Scanner{
		renderer:  renderer,
		runStore:  runStore,
		blobStore: blobStore,
		publisher: publisher,
		clock:     clock,
		idGen:     idGen,
		pages:     pages,
		viewports: ordered,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one full collection pass and returns its summary. A capture
// failure for one (page, viewport) unit is recorded and never aborts the
// remaining units; only context cancellation stops the run early.
func (s *Scanner) Run(ctx context.Context) (scan.RunSummary, error) {
	runID, err := s.idGen.NewID()
	if err != nil {
		return scan.RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	started := s.clock.Now()
	date := started.UTC().Format("2006-01-02")

	metrics.IncActiveScans()
	defer metrics.DecActiveScans()

	s.logger.Info("scan run started",
		zap.String("run_id", runID),
		zap.Int("pages", len(s.pages)),
		zap.Int("viewports", len(s.viewports)),
	)

	reports := make([]scan.PageReport, 0, len(s.pages))
	for i, page := range s.pages {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			pause(ctx, s.cfg.Delay)
		}
		reports = append(reports, s.scanPage(ctx, runID, date, page))
	}

	summary := buildRunSummary(runID, date, started, s.clock.Now(), reports, s.cfg.Thresholds, s.topN())
	metrics.ObserveRunDuration(summary.FinishedAt.Sub(summary.StartedAt))

	if err := s.runStore.SaveRun(ctx, summary); err != nil {
		return summary, fmt.Errorf("save run: %w", err)
	}
	s.publishRun(ctx, summary)

	s.logger.Info("scan run finished",
		zap.String("run_id", runID),
		zap.Int("pages_scanned", summary.PagesScanned),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Float64("average_coverage", summary.AverageCoverage),
	)
	return summary, nil
}

func (s *Scanner) scanPage(ctx context.Context, runID, date string, page scan.PageConfig) scan.PageReport {
	filter := analysis.NewTokenFilter(s.cfg.Marker, s.cfg.ExcludePrefixes)
	outcomes := make(map[string]analysis.ViewportOutcome, len(s.viewports))
	viewports := make(map[string]scan.ViewportReport, len(s.viewports))

	for i, vp := range s.viewports {
		if i > 0 {
			pause(ctx, s.cfg.Delay)
		}
		report := s.scanUnit(ctx, runID, date, page, vp, filter, outcomes)
		viewports[vp.Name] = report
	}

	pageReport := scan.PageReport{Page: page, Viewports: viewports}
	cross, err := analysis.AnalyzeViewports(outcomes)
	if err != nil {
		// Every viewport failed; the report carries the failure marker
		// instead of a populated cross-viewport result.
		pageReport.AllViewportsFailed = true
		s.logger.Warn("all viewports failed for page",
			zap.String("run_id", runID),
			zap.String("page", page.Name),
		)
		return pageReport
	}
	pageReport.CrossViewport = &cross
	return pageReport
}

func (s *Scanner) scanUnit(
	ctx context.Context,
	runID string,
	date string,
	page scan.PageConfig,
	vp scan.ViewportSpec,
	filter analysis.TokenFilter,
	outcomes map[string]analysis.ViewportOutcome,
) scan.ViewportReport {
	snap, err := s.renderer.Snapshot(ctx, page.URL, vp)
	if err != nil {
		outcomes[vp.Name] = analysis.ViewportOutcome{Err: err}
		metrics.ObserveUnit(page.Name, vp.Name, "failed")
		s.logger.Warn("snapshot failed",
			zap.String("run_id", runID),
			zap.String("page", page.Name),
			zap.String("viewport", vp.Name),
			zap.Error(err),
		)
		return scan.ViewportReport{Viewport: vp, CaptureError: err.Error()}
	}

	pa := analysis.AnalyzePage(snap, filter, s.topN())
	outcomes[vp.Name] = analysis.ViewportOutcome{Analysis: pa}

	summary := analysis.Summarize(page.URL, page.Type, page.Section, pa)
	detail := analysis.Detail(page.URL, page.Type, page.Section, pa)

	metrics.ObserveUnit(page.Name, vp.Name, "succeeded")
	metrics.SetCoverage(page.Name, vp.Name, summary.TPLCoverage)
	s.logger.Debug("unit analyzed",
		zap.String("run_id", runID),
		zap.String("page", page.Name),
		zap.String("viewport", vp.Name),
		zap.Float64("coverage", summary.TPLCoverage),
		zap.Int("elements", summary.ElementCount),
	)

	s.persistDetail(ctx, runID, date, page, vp, detail)

	return scan.ViewportReport{Viewport: vp, Summary: &summary, Detail: &detail}
}

func (s *Scanner) persistDetail(
	ctx context.Context,
	runID string,
	date string,
	page scan.PageConfig,
	vp scan.ViewportSpec,
	detail analysis.PageDetail,
) {
	if s.blobStore == nil {
		return
	}
	data, err := json.Marshal(detail)
	if err != nil {
		s.logger.Error("marshal detail failed", zap.String("page", page.Name), zap.Error(err))
		return
	}
	path := detailPath(s.cfg.DetailPrefix, date, page.Name, vp.Name)
	if _, err := s.blobStore.PutObject(ctx, path, "application/json", data); err != nil {
		s.logger.Error("persist detail failed",
			zap.String("run_id", runID),
			zap.String("page", page.Name),
			zap.String("viewport", vp.Name),
			zap.Error(err),
		)
	}
}

func (s *Scanner) publishRun(ctx context.Context, summary scan.RunSummary) {
	if s.cfg.Topic == "" || s.publisher == nil {
		return
	}
	payload := map[string]any{
		"run_id":           summary.RunID,
		"date":             summary.Date,
		"pages_scanned":    summary.PagesScanned,
		"pages_failed":     summary.PagesFailed,
		"average_coverage": summary.AverageCoverage,
		"timestamp":        summary.FinishedAt.Format(time.RFC3339),
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, payload); err != nil {
		s.logger.Error("publish run event failed", zap.String("run_id", summary.RunID), zap.Error(err))
		return
	}
	s.logger.Info("run event published", zap.String("run_id", summary.RunID), zap.String("topic", s.cfg.Topic))
}

func (s *Scanner) topN() int {
	if s.cfg.TopComponents > 0 {
		return s.cfg.TopComponents
	}
	return analysis.DefaultTopComponents
}

func detailPath(prefix, date, page, viewport string) string {
	if prefix == "" {
		return fmt.Sprintf("%s/%s-%s.json", date, page, viewport)
	}
	return fmt.Sprintf("%s/%s/%s-%s.json", prefix, date, page, viewport)
}

// pause blocks for delay or until ctx finishes, whichever comes first.
func pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
