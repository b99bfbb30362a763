package blueprint

import (
	"bytes"

	"github.com/BurntSushi/toml"
)

// ParseTOML decodes data into a Blueprint, rejecting any input without a
// name and any input carrying unknown fields.
func ParseTOML(data []byte) (Blueprint, error) {
	var b Blueprint

	md, err := toml.Decode(string(data), &b)
	if err != nil {
		return Blueprint{}, &ParseError{"cannot parse blueprint TOML: " + err.Error()}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Blueprint{}, &ParseError{"unknown field " + undecoded[0].String() + " in blueprint"}
	}
	if b.Name == "" {
		return Blueprint{}, &ParseError{"blueprint is missing a name"}
	}
	if b.Modules == nil {
		b.Modules = []Package{}
	}
	if b.Packages == nil {
		b.Packages = []Package{}
	}

	return b, nil
}

// ToTOML renders b as canonical TOML. For every Blueprint b,
// ParseTOML(ToTOML(b)) == b.
func ToTOML(b Blueprint) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
