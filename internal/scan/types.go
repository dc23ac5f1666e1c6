package scan

import (
	"time"

	"github.com/dsmetrics/tplscan/internal/analysis"
)

// PageConfig identifies one logical page to measure.
type PageConfig struct {
	Name    string `json:"name" mapstructure:"name"`
	URL     string `json:"url" mapstructure:"url"`
	Type    string `json:"type" mapstructure:"type"`
	Section string `json:"section" mapstructure:"section"`
}

// ViewportSpec is a named screen-size configuration. Specs are externally
// configured and immutable for a run.
type ViewportSpec struct {
	Name       string `json:"name" mapstructure:"name"`
	Width      int    `json:"width" mapstructure:"width"`
	Height     int    `json:"height" mapstructure:"height"`
	DeviceType string `json:"deviceType" mapstructure:"device_type"`
	Priority   int    `json:"priority" mapstructure:"priority"`
}

// Thresholds are the coverage bands used by the daily summary rollup.
type Thresholds struct {
	High   float64 `json:"high" mapstructure:"high"`
	Medium float64 `json:"medium" mapstructure:"medium"`
}

// Band classifies a coverage percentage.
func (t Thresholds) Band(coverage float64) string {
	switch {
	case coverage >= t.High:
		return "high"
	case coverage >= t.Medium:
		return "medium"
	default:
		return "low"
	}
}

// ViewportReport is one (page, viewport) unit's outcome. Exactly one of
// Summary/Detail (on success) or CaptureError (on failure) is populated;
// a failed unit never aborts its siblings.
type ViewportReport struct {
	Viewport     ViewportSpec          `json:"viewport"`
	Summary      *analysis.PageSummary `json:"summary,omitempty"`
	Detail       *analysis.PageDetail  `json:"detail,omitempty"`
	CaptureError string                `json:"captureError,omitempty"`
}

// Succeeded reports whether the unit produced an analysis.
func (r ViewportReport) Succeeded() bool {
	return r.CaptureError == "" && r.Summary != nil
}

// PageReport aggregates all viewport units for one logical page.
type PageReport struct {
	Page               PageConfig                      `json:"page"`
	Viewports          map[string]ViewportReport       `json:"viewports"`
	CrossViewport      *analysis.CrossViewportAnalysis `json:"crossViewport,omitempty"`
	AllViewportsFailed bool                            `json:"allViewportsFailed,omitempty"`
}

// RunSummary is the aggregation across all configured pages for one
// collection run. Write-once: persisted and then discarded.
type RunSummary struct {
	RunID           string       `json:"runId"`
	Date            string       `json:"date"`
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
	PagesScanned    int          `json:"pagesScanned"`
	PagesFailed     int          `json:"pagesFailed"`
	AverageCoverage float64      `json:"averageCoverage"`
	HighCoverage    int          `json:"highCoverage"`
	MediumCoverage  int          `json:"mediumCoverage"`
	LowCoverage     int          `json:"lowCoverage"`
	TopComponents   []string     `json:"topComponents"`
	Pages           []PageReport `json:"pages"`
}
