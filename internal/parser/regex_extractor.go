package parser

import (
	"html"
	"regexp"
)

// anchorPattern matches double-quoted href attributes of <a> tags. It does
// not see single-quoted or unquoted attributes.
var anchorPattern = regexp.MustCompile(`<a[^>]*href="([^"\n]*)"`)

// RegexExtractor scans the raw body without building a document tree. It is
// the fastest extractor and tolerates broken markup, at the cost of missing
// hrefs that are not double-quoted.
type RegexExtractor struct {
	pattern *regexp.Regexp
}

// NewRegexExtractor creates a RegexExtractor
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{pattern: anchorPattern}
}

// Extract returns every matched href in body order, with character
// references decoded. It never fails.
func (e *RegexExtractor) Extract(body []byte) ([]string, error) {
	links := newHrefSet()
	for _, m := range e.pattern.FindAllSubmatch(body, -1) {
		links.add(html.UnescapeString(string(m[1])))
	}
	return links.list(), nil
}
