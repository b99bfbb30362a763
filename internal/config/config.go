// Package config loads composer's single INI configuration file with its
// `composer`, `users`, and `repos` sections.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

const (
	defaultShareDir = "/usr/share/lorax"
	defaultSocket   = "/run/weldr/api.socket"
)

// Config is composer's fully-resolved runtime configuration.
type Config struct {
	// StateDir roots blueprints/ (the blueprint store), queue/, and results/.
	StateDir string
	// ShareDir holds the compose-type template directories queue.New scans.
	ShareDir string
	// SocketPath is the Unix domain socket the API is served on.
	SocketPath string
	// AllowedUsers is the users-section allow-list; empty means unrestricted.
	AllowedUsers []string
	// Repos are the package repositories enabled for depsolving, keyed by
	// their section name in the repos section.
	Repos []rpmmd.RepoConfig
}

// Load reads and validates the INI file at path, filling in defaults for
// anything the composer section omits.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{
		ShareDir:   defaultShareDir,
		SocketPath: defaultSocket,
	}

	composer := f.Section("composer")
	if v := composer.Key("state_dir").String(); v != "" {
		cfg.StateDir = v
	}
	if v := composer.Key("share_dir").String(); v != "" {
		cfg.ShareDir = v
	}
	if v := composer.Key("socket").String(); v != "" {
		cfg.SocketPath = v
	}
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("config: [composer] state_dir is required")
	}

	if users := f.Section("users"); users != nil {
		for _, key := range users.Keys() {
			if users.Key(key.Name()).MustBool(false) {
				cfg.AllowedUsers = append(cfg.AllowedUsers, key.Name())
			}
		}
	}

	for _, section := range f.Section("repos").ChildSections() {
		repo := rpmmd.RepoConfig{
			Id:         sectionLeafName(section.Name()),
			BaseURL:    section.Key("baseurl").String(),
			Metalink:   section.Key("metalink").String(),
			MirrorList: section.Key("mirrorlist").String(),
			IgnoreSSL:  section.Key("ignore_ssl").MustBool(false),
		}
		cfg.Repos = append(cfg.Repos, repo)
	}

	return cfg, nil
}

// sectionLeafName strips the "repos." prefix ini.v1 uses for child section
// names ("repos.fedora-32" -> "fedora-32").
func sectionLeafName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
