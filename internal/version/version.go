package version

import (
	"fmt"
	"runtime"
	"time"
)

// Set at link time: -ldflags "-X github.com/MrSnakeDoc/clashfun/internal/version.Version=v0.1.0 ..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = time.Now().Format(time.RFC3339)
	GoVersion = runtime.Version()
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

func Get() Build {
	return Build{Version: Version, Commit: Commit, BuildDate: BuildDate, GoVersion: GoVersion}
}

func (b Build) String() string {
	return fmt.Sprintf("clashfun %s (commit=%s, built=%s, go=%s)", b.Version, b.Commit, b.BuildDate, b.GoVersion)
}
