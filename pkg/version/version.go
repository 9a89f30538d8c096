// Package version provides build and version information for the
// ragengine binary.
package version

import (
	"fmt"
	"runtime"
)

// Version is set via ldflags at release build time, or defaults to dev.
var Version = "dev"

var (
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("ragengine %s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}
