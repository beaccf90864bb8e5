package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time with -ldflags "-X github.com/r9s-ai/jsonlog/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

type Info struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
}

func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if info.Commit == "" {
		info.Commit = vcsRevision()
	}
	return info
}

func (i Info) String() string {
	commit := i.Commit
	if commit == "" {
		commit = "unknown"
	}
	s := fmt.Sprintf("jsonlog %s (commit %s, %s)", i.Version, commit, i.GoVersion)
	if i.BuildDate != "" {
		s += " built " + i.BuildDate
	}
	return s
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}
