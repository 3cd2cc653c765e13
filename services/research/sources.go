package research

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a citation URL to a stable dedup key: lowercase
// host+path with the trailing slash stripped (an empty path becomes "/").
// Scheme, query string, and fragment are dropped entirely, so two
// citations differing only in query parameters collapse to one key.
func NormalizeURL(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	u, err := url.Parse(lowered)
	if err != nil || u.Host == "" {
		// Not an absolute URL; fall back to the raw string as its own key.
		return strings.TrimRight(lowered, "/")
	}

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}

	return u.Host + path
}

// MergeSources concatenates the stage source lists and deduplicates by
// normalized URL, keeping the first occurrence. Output order is stable
// first-seen order across the lists in the order given.
func MergeSources(lists ...[]Source) []Source {
	seen := make(map[string]struct{})
	merged := make([]Source, 0)

	for _, list := range lists {
		for _, src := range list {
			if src.URL == "" {
				continue
			}
			key := NormalizeURL(src.URL)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, src)
		}
	}

	return merged
}
