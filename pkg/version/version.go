// Package version carries the build identity of the newtcli binary.
package version

import "fmt"

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/newtcli/pkg/version.Version=v0.3.0 \
//	  -X github.com/newtron-network/newtcli/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/newtcli/pkg/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// IsDev reports whether the binary was built without version ldflags.
func IsDev() bool {
	return Version == "dev"
}

// String returns the version line printed by tool.
func String(tool string) string {
	if IsDev() {
		return tool + " dev build (use 'make build' for version info)"
	}
	return fmt.Sprintf("%s %s (%s) built %s", tool, Version, GitCommit, BuildDate)
}
