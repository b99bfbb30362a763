package rpmmd

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// Catalog serializes every call into the package-manager backend behind a
// single exclusive lock, since the handle itself cannot be used
// concurrently. Depsolve in particular can be slow; callers must be
// prepared to block.
//
// The catalog also owns the set of enabled package sources: the system
// repositories from the configuration file plus any added at runtime. The
// full set is handed to the backend on every call.
type Catalog struct {
	mu      sync.Mutex
	backend Backend
	sources map[string]SourceConfig
}

// New wraps backend in a Catalog with repos as its system sources.
func New(backend Backend, repos []RepoConfig) *Catalog {
	sources := make(map[string]SourceConfig, len(repos))
	for _, r := range repos {
		sources[r.Id] = NewSourceConfig(r, true)
	}
	return &Catalog{backend: backend, sources: sources}
}

// repoConfigs renders the current source set into the form the backend
// takes, ordered by name. Caller must hold c.mu.
func (c *Catalog) repoConfigs() []RepoConfig {
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	repos := make([]RepoConfig, 0, len(names))
	for _, name := range names {
		sc := c.sources[name]
		repos = append(repos, sc.RepoConfig())
	}
	return repos
}

// SourcesList returns the names of all enabled sources, sorted.
func (c *Catalog) SourcesList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceInfo returns the source named name, if it exists.
func (c *Catalog) SourceInfo(name string) (SourceConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.sources[name]
	return sc, ok
}

// SourceNew adds or replaces a runtime source. System sources (those loaded
// from the configuration file) cannot be replaced.
func (c *Catalog) SourceNew(sc SourceConfig) error {
	if sc.Name == "" {
		return &CatalogError{"source is missing a name"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sources[sc.Name]; ok && existing.System {
		return &CatalogError{fmt.Sprintf("%s is a system source and cannot be changed", sc.Name)}
	}
	sc.System = false
	c.sources[sc.Name] = sc
	return nil
}

// SourceDelete removes a runtime source. System sources cannot be deleted.
func (c *Catalog) SourceDelete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.sources[name]
	if !ok {
		return &CatalogError{fmt.Sprintf("unknown source: %s", name)}
	}
	if sc.System {
		return &CatalogError{fmt.Sprintf("%s is a system source and cannot be deleted", name)}
	}
	delete(c.sources, name)
	return nil
}

// ProjectsList returns every known project, sorted by name.
func (c *Catalog) ProjectsList() ([]Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	projects, err := c.backend.ProjectsList(c.repoConfigs())
	if err != nil {
		return nil, &CatalogError{err.Error()}
	}

	sort.Slice(projects, func(i, j int) bool {
		return strings.ToLower(projects[i].Name) < strings.ToLower(projects[j].Name)
	})

	return projects, nil
}

// ProjectsInfo returns detailed build information for names. A missing name
// fails the whole call with a CatalogError, not a partial result.
func (c *Catalog) ProjectsInfo(names []string) ([]ProjectInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.backend.ProjectsInfo(c.repoConfigs(), names)
	if err != nil {
		return nil, &CatalogError{err.Error()}
	}
	if len(raw) != len(names) {
		return nil, &CatalogError{fmt.Sprintf("could not find all of %v", names)}
	}

	infos := make([]ProjectInfo, 0, len(raw))
	for _, p := range raw {
		builds := make([]BuildInfo, 0, len(p.Builds))
		for _, b := range p.Builds {
			builds = append(builds, renderBuild(b))
		}
		infos = append(infos, ProjectInfo{Project: p.Project, Builds: builds})
	}

	sort.Slice(infos, func(i, j int) bool {
		return strings.ToLower(infos[i].Name) < strings.ToLower(infos[j].Name)
	})

	return infos, nil
}

// ProjectsDepsolve resolves names into their flat, deduped dependency
// closure, stably ordered by name.
func (c *Catalog) ProjectsDepsolve(names []string) ([]Dep, error) {
	return c.Depsolve(names)
}

// ModulesList returns modules, filtered by globs if any are given. An empty
// globs list returns every module.
func (c *Catalog) ModulesList(globs []string) ([]Module, error) {
	c.mu.Lock()
	modules, err := c.backend.ModulesList(c.repoConfigs())
	c.mu.Unlock()
	if err != nil {
		return nil, &CatalogError{err.Error()}
	}

	if len(globs) > 0 {
		patterns := make([]glob.Glob, 0, len(globs))
		for _, g := range globs {
			compiled, err := glob.Compile(g)
			if err != nil {
				return nil, &CatalogError{fmt.Sprintf("invalid glob %q: %v", g, err)}
			}
			patterns = append(patterns, compiled)
		}

		filtered := modules[:0:0]
		for _, m := range modules {
			for _, p := range patterns {
				if p.Match(m.Name) {
					filtered = append(filtered, m)
					break
				}
			}
		}
		modules = filtered
	}

	sort.Slice(modules, func(i, j int) bool {
		return strings.ToLower(modules[i].Name) < strings.ToLower(modules[j].Name)
	})

	return modules, nil
}

// ModulesInfo returns each named module with its full transitive dependency
// list. A missing name fails the whole call.
func (c *Catalog) ModulesInfo(names []string) ([]ModuleInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos, err := c.backend.ModulesInfo(c.repoConfigs(), names)
	if err != nil {
		return nil, &CatalogError{err.Error()}
	}
	if len(infos) != len(names) {
		return nil, &CatalogError{fmt.Sprintf("could not find all of %v", names)}
	}

	for i := range infos {
		for j := range infos[i].Dependencies {
			d := &infos[i].Dependencies[j]
			d.NEVRA = renderNEVRA(d.Name, d.Epoch, d.Version, d.Release, d.Arch)
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		return strings.ToLower(infos[i].Name) < strings.ToLower(infos[j].Name)
	})

	return infos, nil
}

// Depsolve resolves names into a flat, deduped dependency closure, stably
// ordered by name.
func (c *Catalog) Depsolve(names []string) ([]Dep, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deps, err := c.backend.Depsolve(c.repoConfigs(), names)
	if err != nil {
		return nil, &CatalogError{err.Error()}
	}

	seen := make(map[string]bool, len(deps))
	deduped := deps[:0:0]
	for _, d := range deps {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		d.NEVRA = renderNEVRA(d.Name, d.Epoch, d.Version, d.Release, d.Arch)
		deduped = append(deduped, d)
	}

	sort.Slice(deduped, func(i, j int) bool {
		return strings.ToLower(deduped[i].Name) < strings.ToLower(deduped[j].Name)
	})

	return deduped, nil
}
