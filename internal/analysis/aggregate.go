package analysis

import (
	"math"
	"sort"
)

// DefaultTopComponents is the ranked summary size used when no override is
// configured.
const DefaultTopComponents = 3

// Aggregate groups matched elements by class token. An element carrying N
// qualifying tokens contributes its full, unclipped area to all N stats;
// this multi-counting mirrors the coverage calculator's non-deduplication
// policy. The result is sorted descending by total area with ties kept in
// first-encountered order.
func Aggregate(matched []MatchedElement, pageArea float64) []ComponentStat {
	index := make(map[string]int)
	stats := make([]ComponentStat, 0)

	for _, el := range matched {
		for _, token := range el.MatchedClassTokens {
			i, ok := index[token]
			if !ok {
				i = len(stats)
				index[token] = i
				stats = append(stats, ComponentStat{Token: token})
			}
			stats[i].Count++
			stats[i].TotalArea += el.Area
		}
	}

	for i := range stats {
		stats[i].AverageArea = math.Round(stats[i].TotalArea / float64(stats[i].Count))
		if pageArea > 0 {
			stats[i].CoveragePercent = stats[i].TotalArea / pageArea * 100
		}
	}

	sort.SliceStable(stats, func(a, b int) bool {
		return stats[a].TotalArea > stats[b].TotalArea
	})
	return stats
}

// TopComponents returns the first n token names of a ranked stat sequence.
func TopComponents(stats []ComponentStat, n int) []string {
	if n <= 0 {
		n = DefaultTopComponents
	}
	if n > len(stats) {
		n = len(stats)
	}
	names := make([]string, 0, n)
	for _, s := range stats[:n] {
		names = append(names, s.Token)
	}
	return names
}

// AnalyzePage runs the full matcher, coverage and aggregation pass over one
// snapshot and returns an immutable PageAnalysis.
func AnalyzePage(snap DOMSnapshot, filter TokenFilter, topN int) PageAnalysis {
	matched := Match(snap.Elements, filter)
	pageArea := snap.PageArea()
	cov := ComputeCoverage(matched, pageArea, snap.ViewportWidth, snap.ViewportHeight, snap.ScrollOffset())
	stats := Aggregate(matched, pageArea)

	return PageAnalysis{
		ElementCount:            len(matched),
		TotalCoveragePercent:    cov.TotalCoveragePercent,
		ViewportCoveragePercent: cov.ViewportCoveragePercent,
		Components:              stats,
		TopComponents:           TopComponents(stats, topN),
		Matched:                 matched,
	}
}
