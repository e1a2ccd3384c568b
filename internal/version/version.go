// Package version reports the build identity of stmtgrid.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information. A dev build installed with go install
// reports the module version instead.
func Info() (string, string, string) {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	return v, GitCommit, BuildDate
}

// String formats the version for --version output.
func String() string {
	v, commit, date := Info()
	return fmt.Sprintf("stmtgrid %s (commit %s, built %s, %s/%s)", v, commit, date, runtime.GOOS, runtime.GOARCH)
}
