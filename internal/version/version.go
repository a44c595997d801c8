// Package version reports the armtask release.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Override replaces the embedded version when set with
// -ldflags "-X github.com/ShayCichocki/armtask/internal/version.Override=1.2.3".
var Override string

// Get returns the current version, with whitespace trimmed.
func Get() string {
	if v := strings.TrimSpace(Override); v != "" {
		return v
	}
	return strings.TrimSpace(versionContent)
}

// UserAgent is sent by the API client.
func UserAgent() string {
	return "armtask/" + Get()
}
