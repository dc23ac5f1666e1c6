package analysis

// ComputeCoverage turns matched-element geometry into page-area and
// viewport-area coverage percentages.
//
// Total coverage sums raw bounding-box areas without deduplicating overlap;
// nested matched elements double-count their shared region. That behavior is
// load-bearing for continuity with historical data and must not change.
func ComputeCoverage(
	matched []MatchedElement,
	pageArea float64,
	viewportWidth float64,
	viewportHeight float64,
	scroll Offset,
) Coverage {
	var cov Coverage

	if pageArea > 0 {
		var total float64
		for _, el := range matched {
			total += el.Area
		}
		cov.TotalCoveragePercent = total / pageArea * 100
	}

	viewportArea := viewportWidth * viewportHeight
	if viewportArea > 0 {
		var visible float64
		for _, el := range matched {
			visible += clippedArea(el.BoundingBox, viewportWidth, viewportHeight, scroll)
		}
		cov.ViewportCoveragePercent = visible / viewportArea * 100
	}

	return cov
}

// clippedArea intersects a page-relative box, translated into viewport
// coordinates, with the visible rectangle [0,w] x [0,h]. Returns 0 when the
// intersection is empty on either axis.
func clippedArea(box Rect, viewportWidth, viewportHeight float64, scroll Offset) float64 {
	left := box.X - scroll.X
	top := box.Y - scroll.Y
	right := left + box.Width
	bottom := top + box.Height

	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	if right > viewportWidth {
		right = viewportWidth
	}
	if bottom > viewportHeight {
		bottom = viewportHeight
	}

	iw := right - left
	ih := bottom - top
	if iw <= 0 || ih <= 0 {
		return 0
	}
	return iw * ih
}
