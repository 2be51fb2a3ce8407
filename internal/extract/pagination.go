package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var pageSegment = regexp.MustCompile(`^seite:\d+$`)

// PageURL returns the URL of result page n for a search URL. Page 1 (or
// less) is the search URL itself. An existing seite:N path segment is
// replaced; otherwise one is inserted after the first path component.
func PageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil || u.Path == "" || u.Path == "/" {
		return base
	}

	seg := fmt.Sprintf("seite:%d", page)
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	replaced := false
	for i, p := range parts {
		if pageSegment.MatchString(p) {
			parts[i] = seg
			replaced = true
			break
		}
	}
	if !replaced {
		parts = append(parts[:1], append([]string{seg}, parts[1:]...)...)
	}

	u.Path = "/" + strings.Join(parts, "/")
	u.RawPath = ""
	return u.String()
}
