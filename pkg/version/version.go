// Package version carries build metadata set through -ldflags.
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build metadata for the version command.
func String() string {
	return "netwatch " + Version + " (" + Commit + ") built " + Date
}
