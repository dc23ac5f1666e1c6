// Package discovery expands section root URLs into candidate page URLs by
// following same-host links with a Colly collector.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxDepth      int
}

// Discoverer finds pages under a section root by crawling same-host links.
type Discoverer struct {
	cfg Config
	log *zap.Logger
}

// New builds a Discoverer.
func New(cfg Config, log *zap.Logger) *Discoverer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Discoverer{cfg: cfg, log: log}
}

// Discover crawls rootURL and returns up to limit same-host page URLs in
// discovery order. The root URL itself is always the first entry when it is
// reachable. Fragments and query strings are stripped so each page is
// reported once.
func (d *Discoverer) Discover(ctx context.Context, rootURL string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("discover limit must be positive, got %d", limit)
	}
	root, err := url.Parse(rootURL)
	if err != nil {
		return nil, fmt.Errorf("parse root url: %w", err)
	}
	if root.Host == "" {
		return nil, fmt.Errorf("root url %q has no host", rootURL)
	}

	collector := colly.NewCollector(
		colly.Async(false),
		colly.MaxDepth(d.cfg.MaxDepth),
		colly.AllowedDomains(root.Hostname()),
	)
	if d.cfg.UserAgent != "" {
		collector.UserAgent = d.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !d.cfg.RespectRobots
	collector.SetRequestTimeout(d.cfg.Timeout)

	var (
		mu    sync.Mutex
		seen  = make(map[string]struct{})
		pages []string
	)

	add := func(raw string) bool {
		mu.Lock()
		defer mu.Unlock()
		if len(pages) >= limit {
			return false
		}
		if _, ok := seen[raw]; ok {
			return true
		}
		seen[raw] = struct{}{}
		pages = append(pages, raw)
		return len(pages) < limit
	}

	collector.OnResponse(func(r *colly.Response) {
		if page, ok := normalize(r.Request.URL); ok {
			add(page)
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		target, err := url.Parse(link)
		if err != nil {
			return
		}
		page, ok := normalize(target)
		if !ok || target.Hostname() != root.Hostname() {
			return
		}
		if !add(page) {
			return
		}
		if err := e.Request.Visit(link); err != nil {
			d.log.Debug("skipping link", zap.String("url", link), zap.Error(err))
		}
	})

	if err := d.run(ctx, collector, rootURL); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages discovered under %s", rootURL)
	}
	return pages, nil
}

func (d *Discoverer) run(ctx context.Context, collector *colly.Collector, rootURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rootURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("discovery canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", rootURL, err)
		}
		return nil
	}
}

// normalize strips query and fragment and reports whether the URL looks like
// a page rather than an asset.
func normalize(u *url.URL) (string, bool) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	path := u.EscapedPath()
	for _, ext := range []string{".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".pdf", ".zip", ".woff", ".woff2"} {
		if strings.HasSuffix(strings.ToLower(path), ext) {
			return "", false
		}
	}
	clean := *u
	clean.RawQuery = ""
	clean.Fragment = ""
	return strings.TrimSuffix(clean.String(), "/"), true
}
