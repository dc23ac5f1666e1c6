package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func matchedWithTokens(area float64, tokens ...string) MatchedElement {
	return MatchedElement{
		ElementDescriptor:  ElementDescriptor{ClassTokens: tokens, BoundingBox: Rect{Width: area, Height: 1}},
		MatchedClassTokens: tokens,
		Area:               area,
	}
}

func TestAggregate_PerTokenTotals(t *testing.T) {
	t.Parallel()

	matched := []MatchedElement{
		matchedWithTokens(100, "tpl-card"),
		matchedWithTokens(50, "tpl-card"),
		matchedWithTokens(30, "tpl-nav"),
	}
	stats := Aggregate(matched, 1000)

	require.Len(t, stats, 2)
	require.Equal(t, "tpl-card", stats[0].Token)
	require.Equal(t, 2, stats[0].Count)
	require.Equal(t, 150.0, stats[0].TotalArea)
	require.Equal(t, 75.0, stats[0].AverageArea)
	require.Equal(t, 15.0, stats[0].CoveragePercent)
	require.Equal(t, "tpl-nav", stats[1].Token)
}

func TestAggregate_MultiTokenElementCountsFully(t *testing.T) {
	t.Parallel()

	// One element with two qualifying tokens adds its full area to both.
	matched := []MatchedElement{matchedWithTokens(40, "tpl-card", "tpl-shadow")}
	stats := Aggregate(matched, 0)

	require.Len(t, stats, 2)
	for _, s := range stats {
		require.Equal(t, 1, s.Count)
		require.Equal(t, 40.0, s.TotalArea)
		require.Zero(t, s.CoveragePercent)
	}
}

func TestAggregate_StableTieOrder(t *testing.T) {
	t.Parallel()

	matched := []MatchedElement{
		matchedWithTokens(10, "tpl-b"),
		matchedWithTokens(10, "tpl-a"),
		matchedWithTokens(10, "tpl-c"),
	}
	stats := Aggregate(matched, 100)

	require.Equal(t, []string{"tpl-b", "tpl-a", "tpl-c"}, TopComponents(stats, 3))
}

func TestAggregate_AverageAreaIntegerRounded(t *testing.T) {
	t.Parallel()

	matched := []MatchedElement{
		matchedWithTokens(10, "tpl-x"),
		matchedWithTokens(11, "tpl-x"),
		matchedWithTokens(12, "tpl-x"),
	}
	stats := Aggregate(matched, 0)
	require.Equal(t, 11.0, stats[0].AverageArea)
}

func TestAggregate_TotalsExactBeforeRounding(t *testing.T) {
	t.Parallel()

	areas := []float64{0.1, 0.2, 0.3, 100.4}
	var matched []MatchedElement
	var want float64
	for _, a := range areas {
		matched = append(matched, matchedWithTokens(a, "tpl-x"))
		want += a
	}
	stats := Aggregate(matched, 1000)
	require.Equal(t, want, stats[0].TotalArea)
}

func TestTopComponents_ShortList(t *testing.T) {
	t.Parallel()

	stats := []ComponentStat{{Token: "tpl-a"}, {Token: "tpl-b"}}
	require.Equal(t, []string{"tpl-a", "tpl-b"}, TopComponents(stats, 3))
	require.Equal(t, []string{"tpl-a"}, TopComponents(stats, 1))
	require.Equal(t, []string{"tpl-a", "tpl-b"}, TopComponents(stats, 0))
}

func TestAnalyzePage_SpecScenario(t *testing.T) {
	t.Parallel()

	snap := DOMSnapshot{
		Elements: []ElementDescriptor{
			{ClassTokens: []string{"tpl-card", "foo"}, BoundingBox: Rect{X: 0, Y: 0, Width: 10, Height: 10}},
			{ClassTokens: []string{"tpl-btn"}, BoundingBox: Rect{X: 0, Y: 0, Width: 5, Height: 5}},
		},
		BodyScrollWidth:  10,
		BodyScrollHeight: 100,
		ViewportWidth:    10,
		ViewportHeight:   100,
	}
	filter := NewTokenFilter("tpl", []string{"tpl-btn"})

	pa := AnalyzePage(snap, filter, DefaultTopComponents)

	require.Equal(t, 1, pa.ElementCount)
	require.Equal(t, 10.0, pa.TotalCoveragePercent)
	require.Len(t, pa.Components, 1)
	card := pa.Components[0]
	require.Equal(t, "tpl-card", card.Token)
	require.Equal(t, 1, card.Count)
	require.Equal(t, 100.0, card.TotalArea)
	require.Equal(t, 100.0, card.AverageArea)
	require.Equal(t, 10.0, card.CoveragePercent)
	require.Equal(t, []string{"tpl-card"}, pa.TopComponents)
}
