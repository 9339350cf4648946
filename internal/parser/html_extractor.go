package parser

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
)

// HTMLExtractor parses the page into a node tree and collects the href of
// every <a> element.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTMLExtractor
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract parses htmlContent and returns the anchor hrefs in document order,
// without duplicates.
func (e *HTMLExtractor) Extract(htmlContent []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	links := newHrefSet()
	e.traverse(doc, links)
	return links.list(), nil
}

// traverse recursively walks the HTML tree
func (e *HTMLExtractor) traverse(n *html.Node, links *hrefSet) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				links.add(attr.Val)
				break
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.traverse(c, links)
	}
}
