package analysis

import "strings"

// DefaultMarker identifies design-system class tokens.
const DefaultMarker = "tpl"

// DefaultExcludePrefixes lists the scanner's own on-page UI chrome classes.
// Excluding them keeps the instrumentation from inflating its own numbers.
var DefaultExcludePrefixes = []string{
	"tpl-coverage-banner",
	"tpl-coverage-btn",
	"tpl-coverage-close",
	"tpl-coverage-bar",
}

// TokenFilter decides whether a single class token counts as a design-system
// component. The zero value uses DefaultMarker and no exclusions.
type TokenFilter struct {
	Marker          string
	ExcludePrefixes []string
}

// NewTokenFilter builds a filter, falling back to DefaultMarker when marker
// is empty.
func NewTokenFilter(marker string, excludePrefixes []string) TokenFilter {
	if marker == "" {
		marker = DefaultMarker
	}
	return TokenFilter{Marker: marker, ExcludePrefixes: excludePrefixes}
}

func (f TokenFilter) marker() string {
	if f.Marker == "" {
		return DefaultMarker
	}
	return f.Marker
}

// Qualifies reports whether token contains the marker and does not start
// with any excluded prefix.
func (f TokenFilter) Qualifies(token string) bool {
	if !strings.Contains(token, f.marker()) {
		return false
	}
	for _, prefix := range f.ExcludePrefixes {
		if prefix != "" && strings.HasPrefix(token, prefix) {
			return false
		}
	}
	return true
}

// Match filters elements down to those carrying at least one qualifying
// design-system token. Input order is preserved in the output; positional
// diagnostics downstream depend on that.
func Match(elements []ElementDescriptor, filter TokenFilter) []MatchedElement {
	marker := filter.marker()
	matched := make([]MatchedElement, 0, len(elements))
	for _, el := range elements {
		if len(el.ClassTokens) == 0 {
			continue
		}
		if !strings.Contains(strings.Join(el.ClassTokens, " "), marker) {
			continue
		}
		var tokens []string
		for _, token := range el.ClassTokens {
			if filter.Qualifies(token) {
				tokens = append(tokens, token)
			}
		}
		if len(tokens) == 0 {
			continue
		}
		matched = append(matched, MatchedElement{
			ElementDescriptor:  el,
			MatchedClassTokens: tokens,
			Area:               el.BoundingBox.Area(),
		})
	}
	return matched
}
