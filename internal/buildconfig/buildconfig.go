package buildconfig

import "fmt"

// Set with -ldflags "-X github.com/Harshitk-cp/cogquery/internal/buildconfig.version=..."
var (
	version = "dev"
	commit  = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// VersionInfo is the build identity reported by /health.
func VersionInfo() map[string]string {
	return map[string]string{
		"service": "cogquery",
		"version": version,
		"commit":  commit,
	}
}

// String is the one-line form printed by `patmatch version`.
func String() string {
	return fmt.Sprintf("cogquery %s (%s)", version, commit)
}
