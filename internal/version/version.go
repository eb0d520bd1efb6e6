// Package version carries build metadata stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/banshee-data/imu.tracker/internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	// Version is the release tag of the tracker build.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build metadata for logs and the -version flag.
func String() string {
	sha := GitSHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return fmt.Sprintf("imu-tracker %s (%s, built %s)", Version, sha, BuildTime)
}
