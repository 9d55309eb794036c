// Package version holds the build version, overridable at link time with
// -ldflags "-X .../internal/version.Version=v1.2.3".
package version

// Version is the tool version embedded in snapshots and output files.
var Version = "0.4.0-dev"
