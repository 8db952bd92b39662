// Package buildinfo carries the build identity stamped in by -ldflags.
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short picks the most specific identifier available: a release version,
// then the commit, then "dev".
func Short() string {
	switch {
	case Version != "" && Version != "dev":
		return Version
	case Commit != "" && Commit != "unknown":
		return Commit
	}
	return "dev"
}

// String is the full build line printed by -version.
func String() string {
	return fmt.Sprintf("hartos %s (commit %s, built %s)", Version, Commit, Date)
}
