package scout

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at release time.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentBuild reports the running binary. When the commit was not stamped
// through ldflags it falls back to the VCS revision recorded by the Go
// toolchain.
func CurrentBuild() Build {
	b := Build{
		Version:   Version,
		Commit:    GitCommit,
		Date:      BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if b.Commit != "unknown" {
		return b
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if len(s.Value) > 12 {
					b.Commit = s.Value[:12]
				} else {
					b.Commit = s.Value
				}
			case "vcs.time":
				if b.Date == "unknown" {
					b.Date = s.Value
				}
			}
		}
	}
	return b
}

func (b Build) String() string {
	return fmt.Sprintf("scout %s (%s, %s) %s %s", b.Version, b.Commit, b.Date, b.GoVersion, b.Platform)
}
