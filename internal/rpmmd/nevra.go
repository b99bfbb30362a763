package rpmmd

import (
	"fmt"
	"time"
)

// renderNEVRA renders "name-[epoch:]version-release.arch", omitting the
// epoch component entirely when it is zero.
func renderNEVRA(name string, epoch uint32, version, release, arch string) string {
	if epoch == 0 {
		return fmt.Sprintf("%s-%s-%s.%s", name, version, release, arch)
	}
	return fmt.Sprintf("%s-%d:%s-%s.%s", name, epoch, version, release, arch)
}

// renderBuildTime converts a Unix epoch-seconds timestamp to
// "YYYY-MM-DDTHH:MM:SS" in UTC.
func renderBuildTime(epochSeconds int64) string {
	return time.Unix(epochSeconds, 0).UTC().Format("2006-01-02T15:04:05")
}

// reduceChangelog returns the first changelog entry's text, or "" if there
// are none.
func reduceChangelog(entries []Changelog) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Text
}

func renderBuild(b Build) BuildInfo {
	return BuildInfo{
		Epoch:     b.Epoch,
		Version:   b.Version,
		Release:   b.Release,
		Arch:      b.Arch,
		BuildTime: renderBuildTime(b.BuildTime),
		Changelog: reduceChangelog(b.Changelogs),
		License:   b.License,
	}
}
