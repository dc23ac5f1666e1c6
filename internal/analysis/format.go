package analysis

import "math"

// PageSummary is the compact per-page record consumed by trend aggregation.
// Field names are part of the downstream contract and must not change.
type PageSummary struct {
	URL           string   `json:"url"`
	PageType      string   `json:"pageType"`
	Section       string   `json:"section"`
	TPLCoverage   float64  `json:"tplCoverage"`
	ElementCount  int      `json:"elementCount"`
	TopComponents []string `json:"topComponents"`
}

// DetailedMetrics carries everything the summary drops.
type DetailedMetrics struct {
	ViewportCoveragePercent float64          `json:"viewportCoveragePercent"`
	Components              []ComponentStat  `json:"components"`
	Elements                []MatchedElement `json:"elements"`
}

// PageDetail is the summary plus the nested _detailed object. No information
// is lost between the two shapes.
type PageDetail struct {
	PageSummary
	Detailed DetailedMetrics `json:"_detailed"`
}

// Summarize shapes one analysis into the compact record. Percentages are
// rounded to one decimal here, at the reporting edge; internal values stay
// unrounded.
func Summarize(url, pageType, section string, pa PageAnalysis) PageSummary {
	return PageSummary{
		URL:           url,
		PageType:      pageType,
		Section:       section,
		TPLCoverage:   Round1(pa.TotalCoveragePercent),
		ElementCount:  pa.ElementCount,
		TopComponents: pa.TopComponents,
	}
}

// Detail shapes one analysis into the detailed record. It performs field
// selection and rounding only, never recomputing metrics.
func Detail(url, pageType, section string, pa PageAnalysis) PageDetail {
	components := make([]ComponentStat, len(pa.Components))
	copy(components, pa.Components)
	for i := range components {
		components[i].CoveragePercent = Round1(components[i].CoveragePercent)
	}
	return PageDetail{
		PageSummary: Summarize(url, pageType, section, pa),
		Detailed: DetailedMetrics{
			ViewportCoveragePercent: Round1(pa.ViewportCoveragePercent),
			Components:              components,
			Elements:                pa.Matched,
		},
	}
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
