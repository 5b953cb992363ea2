package crawler

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// navKeywords mark an element as a plausible next-page control. Elements
// without one of these in their serialized HTML are never sent to the
// oracle.
var navKeywords = []string{"next", "more results", "load more", "paginat", "page="}

func isNavCandidate(normalizedHTML string) bool {
	lower := strings.ToLower(normalizedHTML)
	for _, kw := range navKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// detectPageParam inspects a freshly navigated URL for a query parameter
// whose value equals the page number just reached. Finding one means the
// site paginates through the URL, so future pages can skip the oracle.
// Keys containing "page" win over other matches; remaining ties resolve in
// lexical key order so the cached strategy is stable across runs.
func detectPageParam(rawURL string, pageNum int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	want := strconv.Itoa(pageNum)
	query := u.Query()

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	match := ""
	for _, key := range keys {
		for _, v := range query[key] {
			if v != want {
				continue
			}
			if strings.Contains(strings.ToLower(key), "page") {
				return key
			}
			if match == "" {
				match = key
			}
		}
	}
	return match
}

// rewritePageParam returns the URL with the cached page-number parameter set
// to the requested page.
func rewritePageParam(rawURL, key string, pageNum int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse page url: %w", err)
	}
	q := u.Query()
	q.Set(key, strconv.Itoa(pageNum))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
