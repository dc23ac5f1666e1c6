// Package main wires together the coverage scanner service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/dsmetrics/tplscan/internal/api"
	"github.com/dsmetrics/tplscan/internal/clock/system"
	"github.com/dsmetrics/tplscan/internal/config"
	"github.com/dsmetrics/tplscan/internal/discovery"
	"github.com/dsmetrics/tplscan/internal/id/uuid"
	"github.com/dsmetrics/tplscan/internal/logging"
	"github.com/dsmetrics/tplscan/internal/metrics"
	pubsubpublisher "github.com/dsmetrics/tplscan/internal/publisher/pubsub"
	"github.com/dsmetrics/tplscan/internal/renderer"
	"github.com/dsmetrics/tplscan/internal/scan"
	"github.com/dsmetrics/tplscan/internal/scanner"
	"github.com/dsmetrics/tplscan/internal/storage/gcs"
	"github.com/dsmetrics/tplscan/internal/storage/local"
	"github.com/dsmetrics/tplscan/internal/storage/memory"
	"github.com/dsmetrics/tplscan/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Run a single collection pass and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *once); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, once bool) error {
	rend, err := renderer.NewChromedp(renderer.Config{
		MaxConcurrency: cfg.Headless.MaxParallel,
		NavTimeout:     time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		SettleDelay:    time.Duration(cfg.Headless.SettleMs) * time.Millisecond,
		HostQPS:        cfg.Headless.HostQPS,
		UserAgent:      cfg.Scan.UserAgent,
	}, logger.Named("renderer"))
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	defer rend.Close()

	runStore, blobStore, cleanupStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanupStores()

	publisher, cleanupPublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanupPublisher()

	pages := cfg.Pages
	if cfg.Discovery.Enabled {
		pages = expandPages(ctx, cfg, logger.Named("discovery"))
	}
	if len(pages) == 0 {
		return errors.New("no pages configured")
	}

	sc := scanner.New(
		rend,
		runStore,
		blobStore,
		publisher,
		system.New(),
		uuid.New(),
		pages,
		cfg.Viewports,
		scanner.Config{
			Marker:          cfg.Scan.Marker,
			ExcludePrefixes: cfg.Scan.ExcludePrefixes,
			TopComponents:   cfg.Scan.TopComponents,
			Thresholds:      cfg.Scan.Thresholds,
			Delay:           cfg.Delay(),
			Topic:           cfg.PubSub.TopicName,
			DetailPrefix:    cfg.Storage.Prefix,
		},
		logger.Named("scanner"),
	)

	if once {
		summary, err := sc.Run(ctx)
		if err != nil {
			return fmt.Errorf("run scan: %w", err)
		}
		logger.Info("single pass complete",
			zap.String("run_id", summary.RunID),
			zap.Int("pages_scanned", summary.PagesScanned),
			zap.Float64("average_coverage", summary.AverageCoverage),
		)
		return nil
	}

	apiServer := api.NewServer(runStore, sc, api.Config{
		AuthEnabled: cfg.Auth.Enabled,
		APIKey:      cfg.Auth.APIKey,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go scanLoop(ctx, sc, cfg.ScanInterval(), logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// scanLoop runs one pass at startup, then repeats on the configured interval.
// A zero interval leaves further runs to the API trigger.
func scanLoop(ctx context.Context, sc *scanner.Scanner, interval time.Duration, logger *zap.Logger) {
	runOnce := func() {
		if _, err := sc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduled scan failed", zap.Error(err))
		}
	}
	runOnce()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func buildStores(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
) (scan.RunStore, scan.BlobStore, func(), error) {
	cleanup := func() {}

	var sink *local.Sink
	if cfg.Storage.LocalRoot != "" {
		s, err := local.NewSink(cfg.Storage.LocalRoot)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init local sink: %w", err)
		}
		sink = s
	}

	var runStore scan.RunStore
	switch {
	case cfg.DB.DSN != "":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:          cfg.DB.DSN,
			SummaryTable: cfg.DB.SummaryTable,
			PageTable:    cfg.DB.PageTable,
			MaxConns:     cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		cleanup = store.Close
		runStore = store
		logger.Info("run store: postgres", zap.String("table", cfg.DB.SummaryTable))
	case sink != nil:
		runStore = sink
		logger.Info("run store: local", zap.String("root", cfg.Storage.LocalRoot))
	default:
		runStore = memory.NewRunStore()
		logger.Warn("run store: in-memory, runs are lost on restart")
	}

	var blobStore scan.BlobStore
	switch {
	case cfg.Storage.GCSBucket != "":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init gcs store: %w", err)
		}
		prev := cleanup
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("close gcs client", zap.Error(err))
			}
			prev()
		}
		blobStore = store
		logger.Info("blob store: gcs", zap.String("bucket", cfg.Storage.GCSBucket))
	case sink != nil:
		blobStore = sink
	default:
		blobStore = memory.NewBlobStore()
	}

	return runStore, blobStore, cleanup, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (scan.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return nil, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, nil, fmt.Errorf("init publisher: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	logger.Info("publisher: pubsub", zap.String("topic", cfg.PubSub.TopicName))
	return pub, cleanup, nil
}

// expandPages grows the configured page list by crawling each page URL as a
// section root. Discovered URLs become extra pages in the same section.
func expandPages(ctx context.Context, cfg config.Config, logger *zap.Logger) []scan.PageConfig {
	disc := discovery.New(discovery.Config{
		UserAgent: cfg.Scan.UserAgent,
		Timeout:   time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second,
	}, logger)

	pages := make([]scan.PageConfig, 0, len(cfg.Pages))
	seen := make(map[string]struct{}, len(cfg.Pages))
	for _, page := range cfg.Pages {
		pages = append(pages, page)
		seen[page.URL] = struct{}{}
	}

	for _, page := range cfg.Pages {
		found, err := disc.Discover(ctx, page.URL, cfg.Discovery.MaxPages)
		if err != nil {
			logger.Warn("discovery failed", zap.String("page", page.Name), zap.Error(err))
			continue
		}
		added := 0
		for _, u := range found {
			if _, ok := seen[u]; ok {
				continue
			}
			if !allowedDomain(u, cfg.Discovery.AllowedDomains) {
				continue
			}
			seen[u] = struct{}{}
			pages = append(pages, scan.PageConfig{
				Name:    pageName(u),
				URL:     u,
				Type:    page.Type,
				Section: page.Section,
			})
			added++
		}
		metrics.ObserveDiscoveredPages(page.Section, added)
		logger.Info("section expanded",
			zap.String("page", page.Name),
			zap.Int("discovered", len(found)),
			zap.Int("added", added),
		)
	}
	return pages
}

func allowedDomain(rawURL string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, domain := range allowed {
		if strings.EqualFold(u.Hostname(), domain) {
			return true
		}
	}
	return false
}

// pageName derives a stable page name from the URL path.
func pageName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := strings.Trim(u.EscapedPath(), "/")
	if name == "" {
		return u.Hostname()
	}
	return strings.ReplaceAll(name, "/", "-")
}
