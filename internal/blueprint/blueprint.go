// Package blueprint contains the in-memory representation of a blueprint,
// TOML/JSON conversion, version bumping and structured diffing.
package blueprint

import (
	"fmt"

	"github.com/coreos/go-semver/semver"
)

// Package is a named dependency with a version glob, used both for the
// "modules" and "packages" lists of a Blueprint.
type Package struct {
	Name    string `json:"name" toml:"name"`
	Version string `json:"version" toml:"version"`
}

// Blueprint is the declarative description of an image's contents.
type Blueprint struct {
	Name        string    `json:"name" toml:"name"`
	Description string    `json:"description" toml:"description"`
	Version     string    `json:"version,omitempty" toml:"version,omitempty"`
	Modules     []Package `json:"modules" toml:"modules"`
	Packages    []Package `json:"packages" toml:"packages"`
}

// ParseError is returned when a blueprint fails to parse or fails
// validation.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// DeepCopy returns an independent copy of b.
func (b *Blueprint) DeepCopy() Blueprint {
	nb := Blueprint{
		Name:        b.Name,
		Description: b.Description,
		Version:     b.Version,
	}
	if b.Modules != nil {
		nb.Modules = append([]Package{}, b.Modules...)
	}
	if b.Packages != nil {
		nb.Packages = append([]Package{}, b.Packages...)
	}
	return nb
}

// Equal reports whether b and other are equal in every field, including
// list order.
func (b *Blueprint) Equal(other *Blueprint) bool {
	if b.Name != other.Name || b.Description != other.Description || b.Version != other.Version {
		return false
	}
	if len(b.Modules) != len(other.Modules) || len(b.Packages) != len(other.Packages) {
		return false
	}
	for i := range b.Modules {
		if b.Modules[i] != other.Modules[i] {
			return false
		}
	}
	for i := range b.Packages {
		if b.Packages[i] != other.Packages[i] {
			return false
		}
	}
	return true
}

// Validate checks the invariants ParseError must surface: a non-empty name
// and unique names within modules and within packages.
func (b *Blueprint) Validate() error {
	if b.Name == "" {
		return &ParseError{"blueprint is missing a name"}
	}
	if err := validateUniqueNames("modules", b.Modules); err != nil {
		return err
	}
	if err := validateUniqueNames("packages", b.Packages); err != nil {
		return err
	}
	if b.Version != "" {
		if _, err := semver.NewVersion(b.Version); err != nil {
			return &ParseError{fmt.Sprintf("invalid version %q: %v", b.Version, err)}
		}
	}
	return nil
}

func validateUniqueNames(field string, pkgs []Package) error {
	seen := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		if seen[p.Name] {
			return &ParseError{fmt.Sprintf("duplicate name %q in %s", p.Name, field)}
		}
		seen[p.Name] = true
	}
	return nil
}
