package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	defaultModule = "pkt.systems/hostconsole"
	productName   = "hostconsole"
	unknown       = "v0.0.0-unknown"
)

// buildVersion is set via -ldflags "-X pkt.systems/hostconsole/internal/version.buildVersion=...".
var buildVersion = ""

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Current returns the best available version string (without dirty suffix).
func Current() string {
	return strings.TrimSuffix(resolve(), "+dirty")
}

// CurrentWithDirty returns the best available version string, keeping the
// +dirty suffix of a modified working tree.
func CurrentWithDirty() string {
	return resolve()
}

// Module returns the module path from build info when available.
func Module() string {
	if info, ok := readBuildInfo(); ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

// UserAgent is sent on every panel API request.
func UserAgent() string {
	return productName + "/" + Current()
}

func resolve() string {
	if v := strings.TrimSpace(buildVersion); v != "" {
		return v
	}
	info, ok := readBuildInfo()
	if !ok {
		return unknown
	}
	if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
		return v
	}
	if v := pseudoVersion(info); v != "" {
		return v
	}
	return unknown
}

// pseudoVersion derives a Go pseudo-version from VCS build settings.
func pseudoVersion(info *debug.BuildInfo) string {
	if info == nil {
		return ""
	}
	settings := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	revision, stamp := settings["vcs.revision"], settings["vcs.time"]
	if revision == "" || stamp == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	ver := "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + revision
	if settings["vcs.modified"] == "true" {
		ver += "+dirty"
	}
	return ver
}
