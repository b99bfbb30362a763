package blueprint

import (
	"github.com/coreos/go-semver/semver"
)

// BumpVersion computes the next version for a commit given the previous
// stored version (old) and the version carried by the incoming blueprint
// (newVersion, possibly empty). Rules, in order:
//
//  1. both absent -> "0.0.1"
//  2. new absent, old present -> old with patch+1
//  3. new present and differs from old (or old absent) -> new, verbatim
//  4. new present and equals old -> old with patch+1
func BumpVersion(old, newVersion string) (string, error) {
	if newVersion == "" {
		if old == "" {
			return "0.0.1", nil
		}
		return bumpPatch(old)
	}

	if _, err := semver.NewVersion(newVersion); err != nil {
		return "", &ParseError{"invalid version " + newVersion + ": " + err.Error()}
	}

	if old == "" || newVersion != old {
		return newVersion, nil
	}

	return bumpPatch(old)
}

func bumpPatch(version string) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", &ParseError{"invalid version " + version + ": " + err.Error()}
	}
	v.BumpPatch()
	return v.String(), nil
}
