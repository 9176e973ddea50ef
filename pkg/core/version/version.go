// Package version holds build version information for cclbridge binaries.
package version

import "fmt"

// Version is the release version; overridden at link time with
// -ldflags "-X github.com/msto63/cclbridge/pkg/core/version.Version=..."
var Version = "1.0.0"

// Commit is the source revision, set at link time
var Commit = "unknown"

// Service names reported in health reports and logs
const (
	Bridge = "cclbridge"
	Relay  = "ccl-relay"
)

// String returns the version line printed by the CLI
func String() string {
	return fmt.Sprintf("%s %s (%s)", Bridge, Version, Commit)
}
