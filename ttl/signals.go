package ttl

import (
	"strings"
	"unicode"
)

var (
	stableMarkers       = map[string]bool{"stable": true, "lts": true, "mature": true}
	deprecatedMarkers   = map[string]bool{"deprecated": true, "deprecation": true, "obsolete": true, "legacy": true}
	experimentalMarkers = map[string]bool{"experimental": true, "unstable": true, "preview": true}
	latestMarkers       = map[string]bool{"latest": true, "current": true, "stable": true}
)

// letterRuns splits s into lowercase runs of letters, so "v2.0.0rc1" yields
// ["v", "rc"] and "non-stable" yields ["non", "stable"].
func letterRuns(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// VersionInfo is what a version string says about maturity.
type VersionInfo struct {
	Latest     bool
	PreRelease string // Marker found, e.g. "beta"; empty for releases
}

// ParseVersion reads latest and pre-release markers from a version string.
// Only markers present in preRelease are recognized as pre-release.
func ParseVersion(version string, preRelease map[string]float64) VersionInfo {
	var info VersionInfo
	worst := 0.0
	for _, run := range letterRuns(version) {
		if latestMarkers[run] {
			info.Latest = true
		}
		if m, ok := preRelease[run]; ok && (info.PreRelease == "" || m < worst) {
			info.PreRelease = run
			worst = m
		}
	}
	return info
}
