package logx

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestFile(t *testing.T, clock *fakeClock, mutate func(*RotateOptions)) (*RotatingFile, string) {
	t.Helper()
	dir := t.TempDir()
	opts := RotateOptions{
		Path:       filepath.Join(dir, "access.log"),
		MaxSizeMB:  100,
		MaxBackups: 10,
		MaxAgeDays: 14,
		Clock:      clock.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	w, err := NewRotatingFile(opts)
	if err != nil {
		t.Fatalf("NewRotatingFile err=%v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, dir
}

func archivesIn(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir err=%v", err)
	}
	out := make([]string, 0)
	for _, e := range entries {
		if _, ok := parseArchiveName("access", ".log", e.Name()); ok {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

func TestRotateOptionsValidation(t *testing.T) {
	cases := map[string]RotateOptions{
		"empty path":   {Path: " ", MaxSizeMB: 1, MaxBackups: 1},
		"size":         {Path: "a.log", MaxSizeMB: 0, MaxBackups: 1},
		"backups":      {Path: "a.log", MaxSizeMB: 1, MaxBackups: 0},
		"negative age": {Path: "a.log", MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: -1},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewRotatingFile(opts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRotateBySize(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 1, 12, 0, 0, 1, time.Local)}
	w, dir := newTestFile(t, clock, func(o *RotateOptions) { o.MaxSizeMB = 1 })

	if _, err := w.Write(bytes.Repeat([]byte("a"), 900*1024)); err != nil {
		t.Fatalf("first write err=%v", err)
	}
	if got := archivesIn(t, dir); len(got) != 0 {
		t.Fatalf("unexpected archives: %v", got)
	}
	clock.now = clock.now.Add(time.Second)
	if _, err := w.Write(bytes.Repeat([]byte("b"), 300*1024)); err != nil {
		t.Fatalf("second write err=%v", err)
	}
	if got := archivesIn(t, dir); len(got) != 1 {
		t.Fatalf("expected 1 archive, got %v", got)
	}
	st, err := os.Stat(filepath.Join(dir, "access.log"))
	if err != nil || st.Size() != 300*1024 {
		t.Fatalf("active file size=%v err=%v", st, err)
	}
}

func TestRotateByDay(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 1, 23, 59, 0, 0, time.Local)}
	w, dir := newTestFile(t, clock, nil)

	if _, err := w.Write([]byte("day1\n")); err != nil {
		t.Fatalf("write day1 err=%v", err)
	}
	clock.now = clock.now.Add(2 * time.Minute)
	if _, err := w.Write([]byte("day2\n")); err != nil {
		t.Fatalf("write day2 err=%v", err)
	}
	got := archivesIn(t, dir)
	if len(got) != 1 || !strings.HasPrefix(got[0], "access-20260202T000100") {
		t.Fatalf("unexpected archives: %v", got)
	}
	body, _ := os.ReadFile(filepath.Join(dir, got[0]))
	if string(body) != "day1\n" {
		t.Fatalf("archive body=%q", body)
	}
}

func TestPruneByCount(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.Local)}
	w, dir := newTestFile(t, clock, func(o *RotateOptions) { o.MaxBackups = 2; o.MaxAgeDays = 0 })

	for i := 0; i < 5; i++ {
		if _, err := fmt.Fprintf(w, "d-%d\n", i); err != nil {
			t.Fatalf("write #%d err=%v", i, err)
		}
		clock.now = clock.now.AddDate(0, 0, 1)
	}
	if got := archivesIn(t, dir); len(got) != 2 {
		t.Fatalf("expected 2 archives, got %v", got)
	}
}

func TestPruneByAge(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.Local)}
	w, dir := newTestFile(t, clock, func(o *RotateOptions) { o.MaxBackups = 20; o.MaxAgeDays = 2 })

	for i := 0; i < 6; i++ {
		if _, err := fmt.Fprintf(w, "d-%d\n", i); err != nil {
			t.Fatalf("write #%d err=%v", i, err)
		}
		if i < 5 {
			clock.now = clock.now.AddDate(0, 0, 1)
		}
	}
	got := archivesIn(t, dir)
	if len(got) != 3 {
		t.Fatalf("expected 3 archives, got %v", got)
	}
	cutoff := clock.now.AddDate(0, 0, -2)
	for _, name := range got {
		at, _ := parseArchiveName("access", ".log", name)
		if at.Before(cutoff) {
			t.Fatalf("archive %s is older than %s", name, cutoff)
		}
	}
}

func TestCompressedArchive(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 1, 10, 0, 0, 0, time.Local)}
	w, dir := newTestFile(t, clock, func(o *RotateOptions) { o.Compress = true })

	if _, err := w.Write([]byte("line-day1\n")); err != nil {
		t.Fatalf("write err=%v", err)
	}
	if err := w.Rotate(); err != nil {
		t.Fatalf("rotate err=%v", err)
	}
	got := archivesIn(t, dir)
	if len(got) != 1 || !strings.HasSuffix(got[0], ".log.gz") {
		t.Fatalf("expected one gz archive, got %v", got)
	}
	f, err := os.Open(filepath.Join(dir, got[0]))
	if err != nil {
		t.Fatalf("open archive err=%v", err)
	}
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader err=%v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gz err=%v", err)
	}
	if string(body) != "line-day1\n" {
		t.Fatalf("unexpected gz body: %q", body)
	}
	if _, err := os.Stat(filepath.Join(dir, strings.TrimSuffix(got[0], ".gz"))); !os.IsNotExist(err) {
		t.Fatalf("uncompressed archive should be removed, err=%v", err)
	}
}

func TestReopenAndClose(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 1, 10, 0, 0, 0, time.Local)}
	w, dir := newTestFile(t, clock, nil)

	if _, err := w.Write([]byte("before\n")); err != nil {
		t.Fatalf("write err=%v", err)
	}
	moved := filepath.Join(dir, "moved.log")
	if err := os.Rename(filepath.Join(dir, "access.log"), moved); err != nil {
		t.Fatalf("rename err=%v", err)
	}
	if err := w.Reopen(); err != nil {
		t.Fatalf("reopen err=%v", err)
	}
	if _, err := w.Write([]byte("after\n")); err != nil {
		t.Fatalf("write err=%v", err)
	}
	body, _ := os.ReadFile(filepath.Join(dir, "access.log"))
	if string(body) != "after\n" {
		t.Fatalf("active body=%q", body)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close err=%v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close err=%v", err)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Fatalf("write after close should fail")
	}
}

func TestWriteRecoversAfterFailedReopen(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 1, 10, 0, 0, 0, time.Local)}
	w, dir := newTestFile(t, clock, func(o *RotateOptions) {
		o.Path = filepath.Join(filepath.Dir(o.Path), "logs", "access.log")
	})
	logs := filepath.Join(dir, "logs")

	// A regular file where the directory was makes every open fail.
	if err := os.RemoveAll(logs); err != nil {
		t.Fatalf("remove dir err=%v", err)
	}
	if err := os.WriteFile(logs, []byte("x"), 0o600); err != nil {
		t.Fatalf("write blocker err=%v", err)
	}
	if err := w.Reopen(); err == nil {
		t.Fatalf("reopen should fail while the directory is missing")
	}
	if _, err := w.Write([]byte("lost\n")); err == nil {
		t.Fatalf("write should fail while the directory is missing")
	}

	if err := os.Remove(logs); err != nil {
		t.Fatalf("remove blocker err=%v", err)
	}
	if err := os.Mkdir(logs, 0o750); err != nil {
		t.Fatalf("mkdir err=%v", err)
	}
	if _, err := w.Write([]byte("back\n")); err != nil {
		t.Fatalf("write after recovery err=%v", err)
	}
	body, _ := os.ReadFile(filepath.Join(logs, "access.log"))
	if string(body) != "back\n" {
		t.Fatalf("active body=%q", body)
	}
	if err := w.Rotate(); err != nil {
		t.Fatalf("rotate err=%v", err)
	}
}

func TestArchiveNames(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 8, time.Local)
	name := archiveName("access", ".log", at)
	if name != "access-20260304T050607.000000008.log" {
		t.Fatalf("name=%q", name)
	}
	got, ok := parseArchiveName("access", ".log", name+".gz")
	if !ok || !got.Equal(at) {
		t.Fatalf("parse=%v ok=%v", got, ok)
	}
	for _, bad := range []string{"access.log", "access-x.log", "other-20260304T050607.000000008.log"} {
		if _, ok := parseArchiveName("access", ".log", bad); ok {
			t.Fatalf("%q should not parse", bad)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Fatalf("buffer is not a terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatalf("CreateTemp err=%v", err)
	}
	defer func() { _ = f.Close() }()
	if IsTerminal(f) {
		t.Fatalf("regular file is not a terminal")
	}
}
