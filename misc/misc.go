// Package misc keeps small helpers needed across the program.
package misc

import "runtime/debug"

// set by the linker during release builds
var (
	appName = "lwp"
	version = "dev"
	gitHash = ""
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns the vcs revision recorded in build info when the linker
// did not provide one explicitly.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
