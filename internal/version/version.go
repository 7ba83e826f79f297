// Package version holds build-time identifiers, set via -ldflags in CI; the
// zero values below are used for local/dev builds.
package version

var (
	Version = "dev"
	Commit  = "none"
)
