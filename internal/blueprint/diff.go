package blueprint

import "sort"

// Change is a single entry in a blueprint diff. Exactly one of Old/New is
// nil for an added/removed package or module; both are present for a
// changed scalar field or a changed package/module version.
type Change struct {
	Old map[string]interface{} `json:"old"`
	New map[string]interface{} `json:"new"`
}

// Diff compares old and new, returning scalar field changes first (in
// declaration order: Name, Description, Version), then module changes,
// then package changes. Within modules/packages: added, then removed, then
// changed, each sorted by name. Diff(b, b) == nil.
func Diff(old, new Blueprint) []Change {
	var changes []Change

	changes = append(changes, diffScalar("Name", old.Name, new.Name)...)
	changes = append(changes, diffScalar("Description", old.Description, new.Description)...)
	changes = append(changes, diffScalar("Version", old.Version, new.Version)...)

	changes = append(changes, diffItems("Module", old.Modules, new.Modules)...)
	changes = append(changes, diffItems("Package", old.Packages, new.Packages)...)

	return changes
}

func diffScalar(field, old, new string) []Change {
	if old == new {
		return nil
	}
	return []Change{{
		Old: map[string]interface{}{field: old},
		New: map[string]interface{}{field: new},
	}}
}

func diffItems(field string, old, new []Package) []Change {
	oldByName := make(map[string]Package, len(old))
	for _, p := range old {
		oldByName[p.Name] = p
	}
	newByName := make(map[string]Package, len(new))
	for _, p := range new {
		newByName[p.Name] = p
	}

	var added, removed, changed []Change

	names := make([]string, 0, len(newByName))
	for name := range newByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := oldByName[name]; !ok {
			added = append(added, Change{
				Old: nil,
				New: map[string]interface{}{field: packageMap(newByName[name])},
			})
		}
	}

	names = names[:0]
	for name := range oldByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := newByName[name]; !ok {
			removed = append(removed, Change{
				Old: map[string]interface{}{field: packageMap(oldByName[name])},
				New: nil,
			})
		}
	}

	names = names[:0]
	for name := range oldByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		np, ok := newByName[name]
		if !ok {
			continue
		}
		op := oldByName[name]
		if op.Version != np.Version {
			changed = append(changed, Change{
				Old: map[string]interface{}{field: packageMap(op)},
				New: map[string]interface{}{field: packageMap(np)},
			})
		}
	}

	var out []Change
	out = append(out, added...)
	out = append(out, removed...)
	out = append(out, changed...)
	return out
}

func packageMap(p Package) map[string]interface{} {
	return map[string]interface{}{"name": p.Name, "version": p.Version}
}
