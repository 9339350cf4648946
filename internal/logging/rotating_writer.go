package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFileWriter is a log file that is moved aside once it would grow
// past maxSize bytes. Backups are named name.1.ext (newest) through
// name.<maxBackups>.ext (oldest).
type RotatingFileWriter struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	size       int64
}

// Ensure RotatingFileWriter implements io.WriteCloser
var _ io.WriteCloser = (*RotatingFileWriter)(nil)

// NewRotatingFileWriter opens filePath for appending, creating its directory
// when needed. A maxSize of zero or less disables rotation.
func NewRotatingFileWriter(filePath string, maxSize int64, maxBackups int) (*RotatingFileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}

	w := &RotatingFileWriter{
		filePath:   filePath,
		maxSize:    maxSize,
		maxBackups: max(maxBackups, 0),
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer. A single record larger than maxSize is still
// written whole, into a fresh file.
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.maxSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the file
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) openFile() error {
	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file = file
	w.size = info.Size()
	return nil
}

// rotate shifts every backup one slot up, dropping the oldest, and starts a
// new file. Caller holds mu.
func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	if w.maxBackups == 0 {
		if err := os.Remove(w.filePath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return w.openFile()
	}

	if err := os.Remove(w.backupName(w.maxBackups)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for i := w.maxBackups - 1; i >= 1; i-- {
		if err := os.Rename(w.backupName(i), w.backupName(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(w.filePath, w.backupName(1)); err != nil && !os.IsNotExist(err) {
		return err
	}

	return w.openFile()
}

// backupName returns the path of backup number index
func (w *RotatingFileWriter) backupName(index int) string {
	ext := filepath.Ext(w.filePath)
	base := w.filePath[:len(w.filePath)-len(ext)]
	return fmt.Sprintf("%s.%d%s", base, index, ext)
}
