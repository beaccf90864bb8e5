package logx

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	archiveLayout = "20060102T150405.000000000"
	dayLayout     = "2006-01-02"
	gzipSuffix    = ".gz"
)

type archive struct {
	name string
	at   time.Time
}

func archiveName(stem, ext string, at time.Time) string {
	return stem + "-" + at.Format(archiveLayout) + ext
}

func parseArchiveName(stem, ext, name string) (time.Time, bool) {
	name = strings.TrimSuffix(name, gzipSuffix)
	if !strings.HasPrefix(name, stem+"-") || !strings.HasSuffix(name, ext) {
		return time.Time{}, false
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, stem+"-"), ext)
	at, err := time.ParseInLocation(archiveLayout, ts, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// archives lists this file's archives, newest first.
func (r *RotatingFile) archives() ([]archive, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	out := make([]archive, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if at, ok := parseArchiveName(r.stem, r.ext, e.Name()); ok {
			out = append(out, archive{name: e.Name(), at: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.After(out[j].at) })
	return out, nil
}

// prune drops archives beyond MaxBackups and those older than MaxAgeDays.
// Failures are ignored; the next rotation retries.
func (r *RotatingFile) prune(now time.Time) {
	list, err := r.archives()
	if err != nil {
		return
	}
	var cutoff time.Time
	if r.opts.MaxAgeDays > 0 {
		cutoff = now.AddDate(0, 0, -r.opts.MaxAgeDays)
	}
	for i, a := range list {
		if i >= r.opts.MaxBackups || (!cutoff.IsZero() && a.at.Before(cutoff)) {
			_ = os.Remove(filepath.Join(r.dir, a.name))
		}
	}
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) (err error) {
	// #nosec G304 -- archive paths are derived from the configured log path.
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	tmp := path + gzipSuffix + ".tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	if _, err = io.Copy(zw, src); err != nil {
		_ = zw.Close()
		_ = dst.Close()
		return err
	}
	if err = zw.Close(); err != nil {
		_ = dst.Close()
		return err
	}
	if err = dst.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp, path+gzipSuffix); err != nil {
		return err
	}
	return os.Remove(path)
}
