// Package version carries build information set with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	GitVersion = "v0.0.0"
	GitCommit  = "unknown"
	BuildTime  = "unknown"
	GoVersion  = runtime.Version()
	Platform   = runtime.GOOS + "/" + runtime.GOARCH
)

// Info renders the build information on one line.
func Info() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s %s)", GitVersion, GitCommit, BuildTime, GoVersion, Platform)
}
