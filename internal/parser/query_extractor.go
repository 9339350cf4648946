package parser

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// QueryExtractor selects a[href] nodes from a goquery document.
type QueryExtractor struct {
	selector string
}

// NewQueryExtractor creates a QueryExtractor
func NewQueryExtractor() *QueryExtractor {
	return &QueryExtractor{selector: "a[href]"}
}

// Extract returns the anchor hrefs of htmlContent in document order.
func (e *QueryExtractor) Extract(htmlContent []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	links := newHrefSet()
	doc.Find(e.selector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links.add(href)
	})
	return links.list(), nil
}
