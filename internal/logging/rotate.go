package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// RotationConfig controls the rotating writer.
type RotationConfig struct {
	// Enabled turns rotation on; New ignores the rest when false.
	Enabled bool
	// MaxSizeMB rotates the active file once it exceeds this size.
	MaxSizeMB int
	// MaxArchives caps retained archives. 0 keeps all.
	MaxArchives int
	// Compress gzips rotated files.
	Compress bool
}

// RotatingWriter is an io.WriteCloser that rotates its file when it
// exceeds the configured size. Rotated files are renamed to
// name.20060102T150405.000 and optionally gzip-compressed.
type RotatingWriter struct {
	path string
	cfg  RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotatingWriter opens (or creates) the active log file.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("logging: rotation size must be positive, got %d", cfg.MaxSizeMB)
	}
	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write implements io.Writer. A write that pushes the file past the size
// limit triggers rotation before the write.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size+int64(len(p)) > int64(w.cfg.MaxSizeMB)*1024*1024 {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close implements io.Closer. Safe to call more than once.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate renames the active file to a timestamped archive, reopens a
// fresh one, and compresses/prunes archives. Caller holds w.mu.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	archive := fmt.Sprintf("%s.%s", w.path, time.Now().UTC().Format("20060102T150405.000"))
	if err := os.Rename(w.path, archive); err != nil {
		return err
	}
	if err := w.open(); err != nil {
		return err
	}

	if w.cfg.Compress {
		if err := compressFile(archive); err == nil {
			archive += ".gz"
		}
	}
	w.prune()
	return nil
}

// compressFile gzips path into path.gz and removes the original.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// prune removes the oldest archives past the retention cap.
func (w *RotatingWriter) prune() {
	if w.cfg.MaxArchives <= 0 {
		return
	}
	archives, err := w.Archives()
	if err != nil || len(archives) <= w.cfg.MaxArchives {
		return
	}
	for _, old := range archives[:len(archives)-w.cfg.MaxArchives] {
		os.Remove(old)
	}
}

// Archives lists archive files for this writer, oldest first. The
// timestamped suffix makes lexical order chronological.
func (w *RotatingWriter) Archives() ([]string, error) {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, entry := range entries {
		name := entry.Name()
		if name != base && strings.HasPrefix(name, base+".") {
			archives = append(archives, filepath.Join(dir, name))
		}
	}
	sort.Strings(archives)
	return archives, nil
}
