package blueprint

import (
	"sort"
	"strings"
)

// Freeze returns a copy of b with every module and package version glob
// replaced by the exact string found in nevra (keyed by name). Names with
// no entry in nevra are left untouched.
func (b *Blueprint) Freeze(nevra map[string]string) Blueprint {
	frozen := b.DeepCopy()

	for i, m := range frozen.Modules {
		if exact, ok := nevra[m.Name]; ok {
			frozen.Modules[i].Version = exact
		}
	}
	for i, p := range frozen.Packages {
		if exact, ok := nevra[p.Name]; ok {
			frozen.Packages[i].Version = exact
		}
	}

	return frozen
}

// Names returns the combined, deduplicated, case-insensitively-sorted set
// of module and package names in the blueprint.
func (b *Blueprint) Names() []string {
	seen := make(map[string]bool, len(b.Modules)+len(b.Packages))
	var names []string
	for _, m := range b.Modules {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	for _, p := range b.Packages {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}
