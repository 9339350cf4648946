// Package export renders a finished crawl. The DOT writer produces the graph
// file every crawl ends with; the Markdown writer produces an optional
// human-readable report.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile creates path and hands it to write. The file is only left in
// place when write and the final flush both succeed.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	buf := bufio.NewWriter(f)
	if err := write(buf); err != nil {
		return err
	}
	return buf.Flush()
}
