package research

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURLCaseAndTrailingSlash(t *testing.T) {
	a := NormalizeURL("HTTP://Example.com/a/b/")
	b := NormalizeURL("http://example.com/a/b")
	require.Equal(t, "example.com/a/b", a)
	require.Equal(t, a, b)
}

func TestNormalizeURLDropsQueryAndFragment(t *testing.T) {
	a := NormalizeURL("http://example.com/a?x=1")
	b := NormalizeURL("http://example.com/a?y=2")
	c := NormalizeURL("https://example.com/a#section")
	require.Equal(t, "example.com/a", a)
	require.Equal(t, a, b)
	require.Equal(t, a, c)
}

func TestNormalizeURLSchemeInsensitive(t *testing.T) {
	require.Equal(t,
		NormalizeURL("https://example.com/pricing"),
		NormalizeURL("http://example.com/pricing"),
	)
}

func TestNormalizeURLEmptyPathDefaultsToRoot(t *testing.T) {
	require.Equal(t, "example.com/", NormalizeURL("https://example.com"))
	require.Equal(t, "example.com/", NormalizeURL("https://example.com/"))
}

func TestMergeSourcesFirstOccurrenceWins(t *testing.T) {
	merged := MergeSources([]Source{
		{Title: "A", URL: "http://example.com/1"},
		{Title: "B", URL: "http://example.com/1"},
		{Title: "C", URL: "http://example.com/2"},
	})

	require.Equal(t, []Source{
		{Title: "A", URL: "http://example.com/1"},
		{Title: "C", URL: "http://example.com/2"},
	}, merged)
}

func TestMergeSourcesAcrossStagesKeepsFirstSeenOrder(t *testing.T) {
	problem := []Source{
		{Title: "Forum thread", URL: "https://news.ycombinator.com/item?id=1"},
		{Title: "Report", URL: "https://example.com/report/"},
	}
	competitors := []Source{
		{Title: "Report dup", URL: "HTTP://Example.com/report"},
		{Title: "Competitor", URL: "https://competitor.io/pricing"},
	}
	market := []Source{
		{Title: "Forum dup", URL: "https://news.ycombinator.com/item?id=2"},
		{Title: "Market data", URL: "https://statista.com/market"},
	}

	merged := MergeSources(problem, competitors, market)

	require.Equal(t, []Source{
		{Title: "Forum thread", URL: "https://news.ycombinator.com/item?id=1"},
		{Title: "Report", URL: "https://example.com/report/"},
		{Title: "Competitor", URL: "https://competitor.io/pricing"},
		{Title: "Market data", URL: "https://statista.com/market"},
	}, merged)
}

func TestMergeSourcesSkipsEmptyURLs(t *testing.T) {
	merged := MergeSources([]Source{
		{Title: "no url"},
		{Title: "ok", URL: "https://example.com/x"},
	})
	require.Len(t, merged, 1)
	require.Equal(t, "ok", merged[0].Title)
}
