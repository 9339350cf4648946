// Package parser extracts raw link targets from fetched HTML pages.
// Extractors return href values exactly as written in the document; scheme
// filtering, resolution of relative links and normalization are left to the
// caller.
package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names an extractor implementation
type Kind string

const (
	// KindHTML walks the golang.org/x/net/html node tree.
	KindHTML Kind = "html"
	// KindGoquery selects anchors with a goquery document.
	KindGoquery Kind = "goquery"
	// KindRegex scans the raw body for anchor tags with a regular expression.
	KindRegex Kind = "regex"
)

// ErrUnknownKind is returned by New for an unsupported extractor name.
var ErrUnknownKind = errors.New("unknown extractor")

// Extractor returns the raw href values of every anchor in a page body.
type Extractor interface {
	Extract(body []byte) ([]string, error)
}

// Kinds lists the supported extractor names
func Kinds() []Kind {
	return []Kind{KindHTML, KindGoquery, KindRegex}
}

// New returns the extractor registered under kind.
func New(kind Kind) (Extractor, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindHTML, "":
		return NewHTMLExtractor(), nil
	case KindGoquery:
		return NewQueryExtractor(), nil
	case KindRegex:
		return NewRegexExtractor(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// hrefSet collects hrefs once each, in document order.
type hrefSet struct {
	seen  map[string]struct{}
	hrefs []string
}

func newHrefSet() *hrefSet {
	return &hrefSet{seen: make(map[string]struct{})}
}

func (s *hrefSet) add(href string) {
	href = strings.TrimSpace(href)
	if href == "" {
		return
	}
	if _, ok := s.seen[href]; ok {
		return
	}
	s.seen[href] = struct{}{}
	s.hrefs = append(s.hrefs, href)
}

func (s *hrefSet) list() []string {
	return s.hrefs
}
