// Package version derives the service version from build metadata:
// an -ldflags override when set, otherwise the VCS revision, otherwise "dev".
package version

import "runtime/debug"

const appName = "quorum"

// commitOverride is injected via -ldflags for container builds without .git.
var commitOverride string

// Commit is the short (8 char) revision identifying this build.
var Commit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return shorten(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shorten(s.Value)
			}
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "quorum/<commit>" for logs and user-agent strings.
func Full() string {
	return appName + "/" + Commit
}
