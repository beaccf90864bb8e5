// Package logx holds the access log sinks: a size and day rotating file and
// terminal detection for stdout output.
package logx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type RotateOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	// MaxAgeDays of 0 keeps archives regardless of age.
	MaxAgeDays int
	Compress   bool
	Clock      func() time.Time
}

func (o RotateOptions) validate() error {
	switch {
	case strings.TrimSpace(o.Path) == "":
		return errors.New("rotate: path is empty")
	case o.MaxSizeMB <= 0:
		return errors.New("rotate: max_size_mb must be > 0")
	case o.MaxBackups <= 0:
		return errors.New("rotate: max_backups must be > 0")
	case o.MaxAgeDays < 0:
		return errors.New("rotate: max_age_days must be >= 0")
	}
	return nil
}

// RotatingFile appends to Path and moves it aside when it would grow past
// MaxSizeMB or the local day changes. Archives are named
// <stem>-<timestamp><ext>, optionally gzip compressed.
type RotatingFile struct {
	mu sync.Mutex

	path  string
	dir   string
	stem  string
	ext   string
	limit int64
	opts  RotateOptions

	file   *os.File
	size   int64
	day    string
	closed bool
}

func NewRotatingFile(opts RotateOptions) (*RotatingFile, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	path := filepath.Clean(strings.TrimSpace(opts.Path))
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	r := &RotatingFile{
		path:  path,
		dir:   filepath.Dir(path),
		stem:  strings.TrimSuffix(base, ext),
		ext:   ext,
		limit: int64(opts.MaxSizeMB) << 20,
		opts:  opts,
	}
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return nil, fmt.Errorf("rotate: create dir: %w", err)
	}
	if err := r.openLocked(r.now()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) now() time.Time { return r.opts.Clock().In(time.Local) }

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, os.ErrClosed
	}
	now := r.now()
	if r.file == nil {
		// A failed rotate or reopen left no file; try again.
		if err := r.openLocked(now); err != nil {
			return 0, err
		}
	}
	if r.due(now, len(p)) {
		if err := r.rotateLocked(now); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) due(now time.Time, incoming int) bool {
	if now.Format(dayLayout) != r.day {
		return true
	}
	return r.size > 0 && r.size+int64(incoming) > r.limit
}

// Rotate archives the active file now.
func (r *RotatingFile) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return os.ErrClosed
	}
	return r.rotateLocked(r.now())
}

// Reopen closes and reopens Path, for files moved away by an external tool.
func (r *RotatingFile) Reopen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return os.ErrClosed
	}
	if err := r.closeFileLocked(); err != nil {
		return err
	}
	return r.openLocked(r.now())
}

func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.closeFileLocked()
}

func (r *RotatingFile) closeFileLocked() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *RotatingFile) rotateLocked(now time.Time) error {
	if err := r.closeFileLocked(); err != nil {
		return err
	}
	target := filepath.Join(r.dir, archiveName(r.stem, r.ext, now))
	moveErr := os.Rename(r.path, target)
	if err := r.openLocked(now); err != nil {
		return err
	}
	if moveErr != nil {
		if errors.Is(moveErr, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("rotate: archive %s: %w", r.path, moveErr)
	}
	if r.opts.Compress {
		if err := gzipFile(target); err != nil {
			return fmt.Errorf("rotate: compress %s: %w", target, err)
		}
	}
	r.prune(now)
	return nil
}

func (r *RotatingFile) openLocked(now time.Time) error {
	// #nosec G304 -- the access log path comes from trusted config.
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.file = f
	r.size = st.Size()
	r.day = now.Format(dayLayout)
	return nil
}
