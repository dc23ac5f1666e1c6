package scanner

import (
	"sort"
	"time"

	"github.com/dsmetrics/tplscan/internal/analysis"
	"github.com/dsmetrics/tplscan/internal/scan"
)

// buildRunSummary rolls the per-page reports up into the daily summary.
// A page counts as failed only when every one of its viewports failed.
func buildRunSummary(
	runID string,
	date string,
	started time.Time,
	finished time.Time,
	reports []scan.PageReport,
	thresholds scan.Thresholds,
	topN int,
) scan.RunSummary {
	summary := scan.RunSummary{
		RunID:      runID,
		Date:       date,
		StartedAt:  started,
		FinishedAt: finished,
		Pages:      reports,
	}

	var coverageSum float64
	var covered int
	for _, report := range reports {
		if report.AllViewportsFailed {
			summary.PagesFailed++
			continue
		}
		summary.PagesScanned++

		pageCoverage := averagePageCoverage(report)
		coverageSum += pageCoverage
		covered++

		switch thresholds.Band(pageCoverage) {
		case "high":
			summary.HighCoverage++
		case "medium":
			summary.MediumCoverage++
		default:
			summary.LowCoverage++
		}
	}
	if covered > 0 {
		summary.AverageCoverage = analysis.Round1(coverageSum / float64(covered))
	}
	summary.TopComponents = globalTopComponents(reports, topN)
	return summary
}

// averagePageCoverage is the mean reported coverage over a page's
// successful viewports.
func averagePageCoverage(report scan.PageReport) float64 {
	var sum float64
	var n int
	for _, vr := range report.Viewports {
		if !vr.Succeeded() {
			continue
		}
		sum += vr.Summary.TPLCoverage
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// globalTopComponents ranks tokens by total area summed over every
// successful unit in the run.
func globalTopComponents(reports []scan.PageReport, topN int) []string {
	totals := make(map[string]float64)
	order := make([]string, 0)
	for _, report := range reports {
		viewportNames := make([]string, 0, len(report.Viewports))
		for name := range report.Viewports {
			viewportNames = append(viewportNames, name)
		}
		sort.Strings(viewportNames)
		for _, name := range viewportNames {
			vr := report.Viewports[name]
			if vr.Detail == nil {
				continue
			}
			for _, stat := range vr.Detail.Detailed.Components {
				if _, seen := totals[stat.Token]; !seen {
					order = append(order, stat.Token)
				}
				totals[stat.Token] += stat.TotalArea
			}
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return totals[order[a]] > totals[order[b]]
	})
	if topN <= 0 {
		topN = analysis.DefaultTopComponents
	}
	if topN > len(order) {
		topN = len(order)
	}
	return order[:topN]
}
