package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/masahif/sitegraph/internal/frontier"
)

// WriteDOT writes the crawl graph as a Graphviz digraph, one tab-indented
// edge per line in graph insertion order:
//
//	digraph G {
//		"a.com" -> "b.com"
//	}
//
// Sites are quoted but not escaped; normalized sites never contain quotes.
// Crawled sites without outgoing links produce no line.
func WriteDOT(w io.Writer, snap *frontier.Snapshot) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, "digraph G {"); err != nil {
		return err
	}
	for _, adj := range snap.Edges {
		for _, target := range adj.Targets {
			if _, err := fmt.Fprintf(bw, "\t\"%s\" -> \"%s\"\n", adj.Source, target); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprintln(bw, "}"); err != nil {
		return err
	}

	return bw.Flush()
}

// WriteDOTFile writes the graph to path.
func WriteDOTFile(path string, snap *frontier.Snapshot) error {
	return WriteFile(path, func(w io.Writer) error {
		return WriteDOT(w, snap)
	})
}
