// Package version carries build metadata set through -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output and reports.
func String() string {
	return fmt.Sprintf("quality-compare %s (%s, built %s)", Version, GitSHA, BuildTime)
}
