package analysis

import (
	"errors"
	"sort"
)

// ErrAllViewportsFailed is returned when no viewport produced a usable
// PageAnalysis. Callers must check for it before aggregating the result.
var ErrAllViewportsFailed = errors.New("all viewports failed")

// ViewportOutcome is one viewport's analysis or its capture failure.
type ViewportOutcome struct {
	Analysis PageAnalysis
	Err      error
}

// VarianceStats holds min/max/average/range over a scalar metric.
type VarianceStats struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	Range   float64 `json:"range"`
}

// CrossViewportAnalysis captures how consistently a page adopts the design
// system across breakpoints. Derived purely from the per-viewport analyses.
type CrossViewportAnalysis struct {
	CoverageVariance           VarianceStats       `json:"coverageVariance"`
	ElementCountVariance       VarianceStats       `json:"elementCountVariance"`
	ComponentConsistency       map[string]float64  `json:"componentConsistency"`
	ViewportSpecificComponents map[string][]string `json:"viewportSpecificComponents"`
	ResponsiveAdoptionScore    float64             `json:"responsiveAdoptionScore"`
}

// AnalyzeViewports combines per-viewport outcomes for one logical page.
// Only successful viewports participate; with none, ErrAllViewportsFailed is
// returned instead of a populated result.
func AnalyzeViewports(perViewport map[string]ViewportOutcome) (CrossViewportAnalysis, error) {
	names := successfulViewports(perViewport)
	if len(names) == 0 {
		return CrossViewportAnalysis{}, ErrAllViewportsFailed
	}

	coverages := make([]float64, 0, len(names))
	counts := make([]float64, 0, len(names))
	for _, name := range names {
		pa := perViewport[name].Analysis
		coverages = append(coverages, pa.TotalCoveragePercent)
		counts = append(counts, float64(pa.ElementCount))
	}

	result := CrossViewportAnalysis{
		CoverageVariance:           varianceStats(coverages),
		ElementCountVariance:       varianceStats(counts),
		ComponentConsistency:       componentConsistency(perViewport, names),
		ViewportSpecificComponents: viewportSpecific(perViewport, names),
	}

	// With fewer than two successful viewports there is no variance signal;
	// the score is defined as the neutral minimum, not an error.
	if len(names) >= 2 {
		score := 1 - populationVariance(coverages)/100
		if score < 0 {
			score = 0
		}
		result.ResponsiveAdoptionScore = score
	}

	return result, nil
}

func successfulViewports(perViewport map[string]ViewportOutcome) []string {
	names := make([]string, 0, len(perViewport))
	for name, outcome := range perViewport {
		if outcome.Err == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func varianceStats(values []float64) VarianceStats {
	if len(values) == 0 {
		return VarianceStats{}
	}
	stats := VarianceStats{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
		sum += v
	}
	stats.Average = sum / float64(len(values))
	stats.Range = stats.Max - stats.Min
	return stats
}

// populationVariance is the mean of squared deviations from the mean, not
// the sample variance.
func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

func componentConsistency(perViewport map[string]ViewportOutcome, names []string) map[string]float64 {
	appearances := make(map[string]int)
	for _, name := range names {
		for _, token := range perViewport[name].Analysis.TopComponents {
			appearances[token]++
		}
	}
	consistency := make(map[string]float64, len(appearances))
	total := float64(len(names))
	for token, n := range appearances {
		consistency[token] = float64(n) / total
	}
	return consistency
}

func viewportSpecific(perViewport map[string]ViewportOutcome, names []string) map[string][]string {
	specific := make(map[string][]string, len(names))
	for _, name := range names {
		others := make(map[string]struct{})
		for _, other := range names {
			if other == name {
				continue
			}
			for _, token := range perViewport[other].Analysis.TopComponents {
				others[token] = struct{}{}
			}
		}
		var unique []string
		for _, token := range perViewport[name].Analysis.TopComponents {
			if _, shared := others[token]; !shared {
				unique = append(unique, token)
			}
		}
		specific[name] = unique
	}
	return specific
}
