// Package site collapses URLs into the comparable "site" identity used as the
// crawl granularity. A site is the effective second-level domain of a host,
// derived with a label-length heuristic rather than a public suffix list.
package site

import "strings"

// Site is a normalized domain identity such as "example.com" or "example.co.uk".
type Site string

// String returns the site as a plain string
func (s Site) String() string {
	return string(s)
}

// Normalize reduces a raw URL or host to its Site.
//
// Leading "https://" prefixes are dropped, then leading "http://" ones, and the authority is cut at the first '/', '?'
// or '#'. When the second-from-right label is longer than three bytes the site
// is the last two labels ("a.b.example.com" -> "example.com"); otherwise a
// third label is kept to cover country-code suffixes ("sub.example.co.uk" ->
// "example.co.uk"). Authorities with too few labels are returned whole.
// Case and ports are left untouched.
func Normalize(raw string) Site {
	authority := trimRepeated(raw, "https://")
	authority = trimRepeated(authority, "http://")

	if i := strings.IndexAny(authority, "/?#"); i >= 0 {
		authority = authority[:i]
	}

	labels := strings.Split(authority, ".")
	n := len(labels)
	if n < 2 {
		return Site(authority)
	}

	keep := 2
	if len(labels[n-2]) <= 3 {
		keep = 3
	}
	if n < keep {
		return Site(authority)
	}

	return Site(strings.Join(labels[n-keep:], "."))
}

// URL returns the URL fetched for a site. Values that already carry an
// http(s) scheme are returned as is.
func URL(s Site, scheme string) string {
	raw := string(s)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + raw + "/"
}

func trimRepeated(s, prefix string) string {
	for strings.HasPrefix(s, prefix) {
		s = s[len(prefix):]
	}
	return s
}
