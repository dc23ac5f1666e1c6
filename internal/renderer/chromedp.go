// Package renderer provides DOM snapshot providers backed by headless
// Chrome. The analysis engine never talks to a browser directly; it only
// consumes the snapshot values produced here.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dsmetrics/tplscan/internal/analysis"
	"github.com/dsmetrics/tplscan/internal/scan"
)

// ErrRendererDisabled indicates rendering has been disabled via configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

// Config controls the chromedp renderer.
type Config struct {
	MaxConcurrency int
	NavTimeout     time.Duration
	SettleDelay    time.Duration
	HostQPS        float64
	UserAgent      string
}

// Chromedp renders pages with headless Chrome and extracts element
// descriptors via an in-page script.
type Chromedp struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	cfg             Config
	hostLimiters    sync.Map
}

// NewChromedp creates a renderer using the provided configuration.
func NewChromedp(cfg Config, logger *zap.Logger) (*Chromedp, error) {
	if cfg.MaxConcurrency <= 0 {
		return nil, ErrRendererDisabled
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Chromedp{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxConcurrency),
		cfg:             cfg,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (r *Chromedp) Close() {
	if r == nil {
		return
	}
	r.browserCancel()
	r.allocatorCancel()
}

// Snapshot renders url at the given viewport and returns the extracted DOM
// snapshot. Timeouts and navigation errors surface as plain errors; the
// caller records them as capture failures for that unit only.
func (r *Chromedp) Snapshot(
	ctx context.Context,
	rawURL string,
	viewport scan.ViewportSpec,
) (analysis.DOMSnapshot, error) {
	if r == nil {
		return analysis.DOMSnapshot{}, ErrRendererDisabled
	}

	release, err := r.acquireSlot(ctx)
	if err != nil {
		return analysis.DOMSnapshot{}, err
	}
	defer release()

	if waitErr := r.waitHostBudget(ctx, rawURL); waitErr != nil {
		return analysis.DOMSnapshot{}, fmt.Errorf("render rate limit: %w", waitErr)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	snap, err := r.runExtraction(taskCtx, rawURL, viewport)
	if err != nil {
		return analysis.DOMSnapshot{}, fmt.Errorf("render %s at %s: %w", rawURL, viewport.Name, err)
	}
	r.logger.Debug("snapshot captured",
		zap.String("url", rawURL),
		zap.String("viewport", viewport.Name),
		zap.Int("elements", len(snap.Elements)),
	)
	return snap, nil
}

func (r *Chromedp) runExtraction(
	ctx context.Context,
	rawURL string,
	viewport scan.ViewportSpec,
) (analysis.DOMSnapshot, error) {
	var snap analysis.DOMSnapshot
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(
			int64(viewport.Width),
			int64(viewport.Height),
			1.0,
			strings.EqualFold(viewport.DeviceType, "mobile"),
		),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.cfg.SettleDelay),
		chromedp.Evaluate(extractScript, &snap),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return analysis.DOMSnapshot{}, fmt.Errorf("chromedp run: %w", err)
	}
	return snap, nil
}

func (r *Chromedp) acquireSlot(ctx context.Context) (func(), error) {
	if r.sem == nil {
		return func() {}, nil
	}
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *Chromedp) waitHostBudget(ctx context.Context, rawURL string) error {
	if r.cfg.HostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.HostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
