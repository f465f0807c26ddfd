// Package weburl maps crawled documents and the links inside them into a
// single canonical URL space of the form domain/path, without scheme,
// query string, fragment or trailing .html extension.
package weburl

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrNoDomain is returned for storage paths without a domain segment.
var ErrNoDomain = errors.New("no path segment contains a domain")

var pageSuffixes = []string{".html", ".htm"}

// FromPath derives the canonical URL of a document from its storage path.
// The first segment containing a "." starts the encoded domain; it and every
// following segment are joined with "/" and a trailing .html is dropped.
// The relative segments "." and ".." never start the domain.
//
// For example /data/crawl/example.com/blog/post.html becomes example.com/blog/post
func FromPath(storagePath string) (string, error) {
	segments := strings.Split(filepath.ToSlash(storagePath), "/")
	for i, segment := range segments {
		if segment == "." || segment == ".." {
			continue
		}
		if strings.Contains(segment, ".") {
			return stripPageSuffix(strings.Join(segments[i:], "/")), nil
		}
	}
	return "", fmt.Errorf("%w: '%v'", ErrNoDomain, storagePath)
}

// Domain returns the prefix of a canonical URL up to its first "/".
func Domain(url string) string {
	if i := strings.Index(url, "/"); i >= 0 {
		return url[:i]
	}
	return url
}

// Valid reports whether href is a link target that can be followed: an
// absolute http(s) link, a domain relative path or a relative path.
// Other schemes (mailto:, javascript:) and fragment-only links are not.
func Valid(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	if hasHTTPScheme(href) || strings.HasPrefix(href, "/") {
		return true
	}
	first := []rune(href)[0]
	if !unicode.IsLetter(first) && !unicode.IsDigit(first) {
		return false
	}
	return !hasOtherScheme(href)
}

func hasHTTPScheme(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// hasOtherScheme reports whether href starts with a scheme other than http or https
func hasOtherScheme(href string) bool {
	if hasHTTPScheme(href) {
		return false
	}
	colon := strings.Index(href, ":")
	if colon < 0 {
		return false
	}
	// a colon after the first "/" or "?" belongs to the path or query
	if end := strings.IndexAny(href, "/?#"); end >= 0 && end < colon {
		return false
	}
	return true
}

// Normalize resolves href, found in a document of domain, into a canonical
// URL. It returns false when href is not a valid link target.
//
// Relative links are resolved against the root of domain. The scheme, query
// string and fragment are dropped, the path is cleaned and a trailing
// .html or "/" is removed, so that a link to a page and the page's own
// FromPath result are the same string.
func Normalize(domain string, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if !Valid(href) {
		return "", false
	}
	var url string
	switch {
	case hasHTTPScheme(href):
		url = stripScheme(href)
	case strings.HasPrefix(href, "//"):
		// protocol relative
		url = strings.TrimPrefix(href, "//")
	case strings.HasPrefix(href, "/"):
		url = domain + href
	default:
		url = domain + "/" + href
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	host := Domain(url)
	if host == "" {
		return "", false
	}
	rest := strings.TrimPrefix(url, host)
	if rest != "" {
		rest = path.Clean(rest)
	}
	url = strings.TrimSuffix(stripPageSuffix(host+rest), "/")
	return url, true
}

func stripScheme(href string) string {
	lower := strings.ToLower(href)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, scheme) {
			return href[len(scheme):]
		}
	}
	return href
}

func stripPageSuffix(url string) string {
	for _, suffix := range pageSuffixes {
		if strings.HasSuffix(url, suffix) {
			return strings.TrimSuffix(url, suffix)
		}
	}
	return url
}
