package converter

import (
	"net/url"
	"strings"
)

// ResolveSlug derives the canonical slug of a post URL: a single trailing
// slash is dropped and the final path segment is returned.
//
//	https://example.bearblog.dev/my-post/ -> my-post
//	https://example.bearblog.dev/         -> ""
//
// ResolveSlug is pure and idempotent: resolving base+"/"+slug+"/" yields slug.
func ResolveSlug(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}

	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
