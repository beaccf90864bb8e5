package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	got := Info{Version: "v1.2.3", Commit: "abc123", BuildDate: "2026-01-02", GoVersion: "go1.25.3"}.String()
	if got != "jsonlog v1.2.3 (commit abc123, go1.25.3) built 2026-01-02" {
		t.Fatalf("String=%q", got)
	}
	if got := (Info{Version: "dev", GoVersion: "go1.25.3"}).String(); got != "jsonlog dev (commit unknown, go1.25.3)" {
		t.Fatalf("String=%q", got)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version || info.GoVersion != runtime.Version() {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !strings.HasPrefix(info.String(), "jsonlog "+Version) {
		t.Fatalf("String=%q", info.String())
	}
}
