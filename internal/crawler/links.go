package crawler

import (
	"net/url"
	"path"
	"strings"

	"github.com/masahif/sitegraph/internal/site"
)

// pageExtensions are the path extensions still treated as pages. Links with
// any other extension (images, archives, scripts) are not followed.
var pageExtensions = map[string]struct{}{
	"":      {},
	".html": {},
	".htm":  {},
	".php":  {},
	".jsp":  {},
	".jspx": {},
	".asp":  {},
	".aspx": {},
}

// LinkResolver turns the raw hrefs of a page into the set of linked sites.
type LinkResolver struct {
	allowedSchemes []string
}

// NewLinkResolver creates a resolver accepting http and https links
func NewLinkResolver() *LinkResolver {
	return &LinkResolver{allowedSchemes: []string{"http", "https"}}
}

// Sites resolves hrefs against the page URL base, drops everything that is
// not an http(s) page link and normalizes the rest. Each site appears once,
// in first-seen order.
func (r *LinkResolver) Sites(base string, hrefs []string) []site.Site {
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		baseURL = nil
	}

	seen := make(map[site.Site]struct{}, len(hrefs))
	sites := make([]site.Site, 0, len(hrefs))

	for _, href := range hrefs {
		target, ok := r.resolve(baseURL, href)
		if !ok {
			continue
		}

		s := site.Normalize(target.Host)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		sites = append(sites, s)
	}

	return sites
}

// resolve returns the absolute URL of href, or false if it must be skipped.
func (r *LinkResolver) resolve(baseURL *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.Contains(href, "{{") {
		return nil, false
	}

	u, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	if !u.IsAbs() && u.Host == "" && u.Opaque == "" {
		if baseURL == nil {
			return nil, false
		}
		u = baseURL.ResolveReference(u)
	} else if u.Scheme == "" && baseURL != nil {
		// protocol-relative "//host/path"
		u = baseURL.ResolveReference(u)
	}

	if !r.isAllowedScheme(u.Scheme) || u.Host == "" {
		return nil, false
	}

	if _, ok := pageExtensions[strings.ToLower(path.Ext(u.Path))]; !ok {
		return nil, false
	}

	return u, true
}

// isAllowedScheme checks if the URL has an allowed scheme
func (r *LinkResolver) isAllowedScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, allowed := range r.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}
