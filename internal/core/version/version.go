// Package version reports the build of the running binary
package version

import "runtime/debug"

// set at link time, e.g.
// -ldflags "-X warcdex/internal/core/version.version=v0.3.0 -X warcdex/internal/core/version.commit=1a2b3c4"
var (
	version = "dev"
	commit  = ""
	date    = ""
)

var readBuild = debug.ReadBuildInfo

// BuildInfo identifies a binary in logs, /healthz and ClickHouse client info
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go,omitempty"`
}

// Info returns the build of service
// Commit and date fall back to the VCS stamp the go tool embeds, then to "unknown".
func Info(service string) BuildInfo {
	bi := BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
	if info, ok := readBuild(); ok && info != nil {
		bi.Go = info.GoVersion
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && bi.Commit == "":
				bi.Commit = s.Value[:min(7, len(s.Value))]
			case s.Key == "vcs.time" && bi.Date == "":
				bi.Date = s.Value
			}
		}
	}
	if bi.Commit == "" {
		bi.Commit = "unknown"
	}
	if bi.Date == "" {
		bi.Date = "unknown"
	}
	return bi
}
