package scrape

import (
	"fmt"
	"net/url"
	"strconv"
)

// Post-anchor and single-post query parameters that redirect a page URL to a
// one-post view instead of the full listing.
var postAnchorParams = []string{"msg", "post", "p", "pid", "topicseen"}

// Canonicalize strips the fragment and any single-post parameters from a
// thread URL so that fetching it yields the full paginated listing.
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse thread url: %w", err)
	}
	u.Fragment = ""
	q := u.Query()
	for _, k := range postAnchorParams {
		q.Del(k)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PageURL returns the canonical URL of one page of the thread, 1-based.
func PageURL(canonical string, page int, pageParam string) (string, error) {
	u, err := url.Parse(canonical)
	if err != nil {
		return "", fmt.Errorf("parse canonical url: %w", err)
	}
	if pageParam == "" {
		pageParam = "page"
	}
	q := u.Query()
	q.Set(pageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
