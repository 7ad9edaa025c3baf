// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/eludris-client/internal/version.Version=0.3.0 \
//	                   -X github.com/rickgao/eludris-client/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"log/slog"
	"runtime"
)

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent identifies the client in HTTP requests.
func UserAgent() string {
	return "eludris-client/" + Version + " (" + runtime.Version() + ")"
}

// Attr returns the build info as a single log attribute.
func Attr() slog.Attr {
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("time", BuildTime),
	)
}
