package rpmmd

// RepoConfig describes one package repository as declared in the `repos`
// section of the composer configuration file. Exactly one of BaseURL,
// Metalink or MirrorList is expected to be set.
type RepoConfig struct {
	Id         string
	BaseURL    string
	Metalink   string
	MirrorList string
	IgnoreSSL  bool
}

// SourceConfig is the catalog-facing, TOML/JSON-serializable form of a
// repository, as held by the Catalog and surfaced through the
// projects/source API endpoints. It is kept distinct from RepoConfig because the wire format
// (type/url pair, check_gpg/check_ssl booleans) differs from the INI
// representation the config loader produces.
type SourceConfig struct {
	Name     string `json:"name" toml:"name"`
	Type     string `json:"type" toml:"type"`
	URL      string `json:"url" toml:"url"`
	CheckGPG bool   `json:"check_gpg" toml:"check_gpg"`
	CheckSSL bool   `json:"check_ssl" toml:"check_ssl"`
	System   bool   `json:"system" toml:"system"`
}

// NewSourceConfig renders repo into its SourceConfig form. system marks a
// repo loaded from the configuration file, as opposed to one added at
// runtime through the API.
func NewSourceConfig(repo RepoConfig, system bool) SourceConfig {
	sc := SourceConfig{
		Name:     repo.Id,
		CheckGPG: true,
		CheckSSL: !repo.IgnoreSSL,
		System:   system,
	}

	switch {
	case repo.BaseURL != "":
		sc.URL = repo.BaseURL
		sc.Type = "yum-baseurl"
	case repo.Metalink != "":
		sc.URL = repo.Metalink
		sc.Type = "yum-metalink"
	case repo.MirrorList != "":
		sc.URL = repo.MirrorList
		sc.Type = "yum-mirrorlist"
	}

	return sc
}

// RepoConfig converts a SourceConfig back into the form a Backend expects
// to depsolve against.
func (s *SourceConfig) RepoConfig() RepoConfig {
	repo := RepoConfig{
		Id:        s.Name,
		IgnoreSSL: !s.CheckSSL,
	}

	switch s.Type {
	case "yum-baseurl":
		repo.BaseURL = s.URL
	case "yum-metalink":
		repo.Metalink = s.URL
	case "yum-mirrorlist":
		repo.MirrorList = s.URL
	}

	return repo
}
