// Package version reports build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/rbright/parla/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("parla %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}
