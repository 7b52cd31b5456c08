package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter appends to a log file and rotates it once it grows past a
// size limit. Rotated files carry a timestamp suffix and are optionally
// gzipped; files older than the retention window are pruned.
type RotatingWriter struct {
	mu         sync.Mutex
	path       string
	limit      int64 // bytes
	retainDays int
	compress   bool
	out        *os.File
	size       int64
}

// NewRotatingWriter opens (or creates) the log file at path, creating parent
// directories as needed. maxSizeMB bounds the active file; maxAge is the
// retention window in days for rotated files (0 keeps everything).
func NewRotatingWriter(path string, maxSizeMB int, maxAge int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	out, size, err := openLogFile(path)
	if err != nil {
		return nil, err
	}

	w := &RotatingWriter{
		path:       path,
		limit:      int64(maxSizeMB) * 1024 * 1024,
		retainDays: maxAge,
		compress:   compress,
		out:        out,
		size:       size,
	}

	go w.prune()

	return w, nil
}

// Write appends p to the active file, rotating first when the write would
// push it past the size limit. Safe for concurrent use.
func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = w.out.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the active log file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		return nil
	}
	err := w.out.Close()
	w.out = nil
	return err
}

// rotate renames the active file with a timestamp suffix and starts a fresh
// one. Caller holds the mutex.
func (w *RotatingWriter) rotate() error {
	if err := w.out.Close(); err != nil {
		return err
	}

	rotated := fmt.Sprintf("%s.%s", w.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(w.path, rotated); err != nil {
		return err
	}

	if w.compress {
		go gzipAndRemove(rotated)
	}

	out, size, err := openLogFile(w.path)
	if err != nil {
		return err
	}

	w.out = out
	w.size = size
	return nil
}

// prune removes rotated files older than the retention window.
func (w *RotatingWriter) prune() {
	if w.retainDays <= 0 {
		return
	}

	matches, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -w.retainDays)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(path)
			if !strings.HasSuffix(path, ".gz") {
				os.Remove(path + ".gz")
			}
		}
	}
}

func openLogFile(path string) (*os.File, int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		out.Close()
		return nil, 0, fmt.Errorf("failed to stat log file: %w", err)
	}

	return out, info.Size(), nil
}

// gzipAndRemove compresses path to path.gz and deletes the original.
func gzipAndRemove(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer dst.Close()

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
		gzw.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}
