package analysis

// Rect is a bounding box in page-relative CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the raw box area. Degenerate boxes yield 0.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// ElementDescriptor is one DOM element as reported by the rendering provider.
// Descriptors are produced fresh per snapshot and read-only downstream.
type ElementDescriptor struct {
	TagName     string   `json:"tagName"`
	ID          string   `json:"id,omitempty"`
	ClassTokens []string `json:"classTokens"`
	BoundingBox Rect     `json:"boundingBox"`
	IsVisible   bool     `json:"isVisible"`
	InViewport  bool     `json:"inViewport"`
}

// MatchedElement narrows an ElementDescriptor to the design-system tokens
// that passed the inclusion/exclusion predicate.
type MatchedElement struct {
	ElementDescriptor
	MatchedClassTokens []string `json:"matchedClassTokens"`
	Area               float64  `json:"area"`
}

// DOMSnapshot is the full measurement input for one (page, viewport) unit,
// decoded from the in-page extraction script.
type DOMSnapshot struct {
	Elements             []ElementDescriptor `json:"elements"`
	BodyScrollWidth      float64             `json:"bodyScrollWidth"`
	BodyScrollHeight     float64             `json:"bodyScrollHeight"`
	DocumentScrollWidth  float64             `json:"documentScrollWidth"`
	DocumentScrollHeight float64             `json:"documentScrollHeight"`
	ScrollX              float64             `json:"scrollX"`
	ScrollY              float64             `json:"scrollY"`
	ViewportWidth        float64             `json:"viewportWidth"`
	ViewportHeight       float64             `json:"viewportHeight"`
}

// PageArea returns the scrollable page area, taking the larger of the body
// and document scroll dimensions on each axis.
func (s DOMSnapshot) PageArea() float64 {
	w := s.BodyScrollWidth
	if s.DocumentScrollWidth > w {
		w = s.DocumentScrollWidth
	}
	h := s.BodyScrollHeight
	if s.DocumentScrollHeight > h {
		h = s.DocumentScrollHeight
	}
	return w * h
}

// ScrollOffset returns the snapshot's scroll position.
func (s DOMSnapshot) ScrollOffset() Offset {
	return Offset{X: s.ScrollX, Y: s.ScrollY}
}

// Offset is a scroll position in page coordinates.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ComponentStat aggregates all matched elements carrying one class token.
type ComponentStat struct {
	Token           string  `json:"token"`
	Count           int     `json:"count"`
	TotalArea       float64 `json:"totalArea"`
	AverageArea     float64 `json:"averageArea"`
	CoveragePercent float64 `json:"coveragePercent"`
}

// PageAnalysis is the fully computed result for one (page, viewport) unit.
// Instances are never mutated after creation.
type PageAnalysis struct {
	ElementCount            int             `json:"elementCount"`
	TotalCoveragePercent    float64         `json:"totalCoveragePercent"`
	ViewportCoveragePercent float64         `json:"viewportCoveragePercent"`
	Components              []ComponentStat `json:"components"`
	TopComponents           []string        `json:"topComponents"`
	Matched                 []MatchedElement `json:"-"`
}

// Coverage holds the two coverage ratios computed for one unit.
type Coverage struct {
	TotalCoveragePercent    float64
	ViewportCoveragePercent float64
}
