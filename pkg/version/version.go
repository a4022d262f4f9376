// Package version holds build information for appbuilder, set at build time via
// ldflags.
package version

import "fmt"

// Example: go build -ldflags "-X appbuilder/pkg/version.Version=v1.2.3".
//
//nolint:gochecknoglobals // These must be package-level vars for ldflags injection.
var (
	// Version is the semantic version, "dev" for development builds.
	Version = "dev"

	// Commit is the git commit SHA of the build.
	Commit = "none"

	// Date is the build date in ISO format.
	Date = "unknown"
)

// String renders the build information the way `appbuilder version` prints it.
func String() string {
	return fmt.Sprintf("appbuilder %s\n  commit: %s\n  built:  %s\n", Version, Commit, Date)
}
