package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingWriter is an io.WriteCloser that rotates its file by size.
// Rotated files are named <base>-<timestamp>-<seq><ext>; at most maxBackups
// of them are kept.
type RotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	size       int64
	maxBytes   int64
	maxBackups int
	seq        int
}

// NewRotatingWriter opens path for appending, creating it and its directory
// if needed.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	rw := &RotatingWriter{
		path:       path,
		maxBytes:   int64(maxSizeMB) << 20,
		maxBackups: maxBackups,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.size = info.Size()
	return nil
}

// Write implements io.Writer, rotating first if p would overflow the file.
// A single write larger than the limit still lands in one file.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.size > 0 && rw.size+int64(len(p)) > rw.maxBytes {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the current file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingWriter) rotate() error {
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}

	base, ext := rw.split()
	rw.seq++
	rotated := fmt.Sprintf("%s-%s-%03d%s", base, time.Now().Format("20060102-150405"), rw.seq, ext)
	if err := os.Rename(rw.path, rotated); err != nil {
		return fmt.Errorf("rotating log file: %w", err)
	}

	if err := rw.open(); err != nil {
		return err
	}
	rw.prune()
	return nil
}

func (rw *RotatingWriter) split() (base, ext string) {
	ext = filepath.Ext(rw.path)
	base = strings.TrimSuffix(rw.path, ext)
	if ext == "" {
		ext = ".log"
	}
	return base, ext
}

// backups returns rotated file paths, oldest first.
func (rw *RotatingWriter) backups() []string {
	base, ext := rw.split()
	matches, err := filepath.Glob(base + "-*" + ext)
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

func (rw *RotatingWriter) prune() {
	backups := rw.backups()
	for len(backups) > rw.maxBackups {
		os.Remove(backups[0]) //nolint:errcheck
		backups = backups[1:]
	}
}
