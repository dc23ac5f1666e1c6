// Package metrics exposes Prometheus collectors for the coverage scanner.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scanUnitsTotal       *prometheus.CounterVec
	scanCoveragePercent  *prometheus.GaugeVec
	scanRunDurationSecs  prometheus.Histogram
	scanActiveRuns       prometheus.Gauge
	discoveredPagesTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scanUnitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tplscan_units_total",
				Help: "Total (page, viewport) units processed, labeled by page, viewport and status.",
			},
			[]string{"page", "viewport", "status"},
		)

		scanCoveragePercent = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tplscan_coverage_percent",
				Help: "Most recent design-system coverage per page and viewport.",
			},
			[]string{"page", "viewport"},
		)

		scanRunDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tplscan_run_duration_seconds",
				Help:    "Histogram of full collection run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		scanActiveRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tplscan_active_runs",
				Help: "Number of collection runs currently in progress.",
			},
		)

		discoveredPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tplscan_discovered_pages_total",
				Help: "Pages added through section discovery, labeled by section.",
			},
			[]string{"section"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUnit increments the unit counter for one (page, viewport) outcome.
func ObserveUnit(page, viewport, status string) {
	if scanUnitsTotal == nil {
		return
	}
	scanUnitsTotal.WithLabelValues(page, viewport, status).Inc()
}

// SetCoverage records the latest coverage reading for a unit.
func SetCoverage(page, viewport string, coverage float64) {
	if scanCoveragePercent == nil {
		return
	}
	scanCoveragePercent.WithLabelValues(page, viewport).Set(coverage)
}

// ObserveRunDuration records a finished run's wall time.
func ObserveRunDuration(d time.Duration) {
	if scanRunDurationSecs == nil {
		return
	}
	scanRunDurationSecs.Observe(d.Seconds())
}

// IncActiveScans increments the in-progress run gauge.
func IncActiveScans() {
	if scanActiveRuns == nil {
		return
	}
	scanActiveRuns.Inc()
}

// DecActiveScans decrements the in-progress run gauge.
func DecActiveScans() {
	if scanActiveRuns == nil {
		return
	}
	scanActiveRuns.Dec()
}

// ObserveDiscoveredPages counts pages appended through discovery.
func ObserveDiscoveredPages(section string, n int) {
	if discoveredPagesTotal == nil || n <= 0 {
		return
	}
	discoveredPagesTotal.WithLabelValues(section).Add(float64(n))
}
