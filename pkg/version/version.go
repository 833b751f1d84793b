// Package version exposes the application identity used in the subprocess
// handshake, the HTTP User-Agent and log lines.
//
// The commit is resolved once: -ldflags override, then VCS info from
// debug.BuildInfo, then "dev".
package version

import "runtime/debug"

// AppName is the application name reported as clientInfo.name.
const AppName = "buildscout"

// gitCommitOverride is set with -ldflags "-X .../version.gitCommitOverride=<sha>"
// for builds without a .git directory.
var gitCommitOverride string

// GitCommit is the short (8 char) commit hash, or "dev".
var GitCommit = resolveCommit(gitCommitOverride, debug.ReadBuildInfo)

func resolveCommit(override string, readInfo func() (*debug.BuildInfo, bool)) string {
	if override != "" {
		return shortSHA(override)
	}
	info, ok := readInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return shortSHA(s.Value)
		}
	}
	return "dev"
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// UserAgent returns "buildscout/<commit>".
func UserAgent() string {
	return AppName + "/" + GitCommit
}
