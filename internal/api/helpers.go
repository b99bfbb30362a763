package api

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
)

func branchParam(r *http.Request) string {
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		return "master"
	}
	return branch
}

func pagingParams(r *http.Request) (offset, limit int, err error) {
	offset = 0
	limit = 20

	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, err
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, err
		}
	}
	return offset, limit, nil
}

// splitNames splits a comma-separated path segment into trimmed names.
func splitNames(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

// sortedByLowerName sorts names case-insensitively.
func sortedByLowerName(names []string) []string {
	out := append([]string(nil), names...)
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// takeLimits applies offset/limit to a name list, clamping the offset to
// the list length.
func takeLimits(items []string, offset, limit int) []string {
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// decodeJSONBody decodes the request body as JSON into v.
func decodeJSONBody(r *http.Request, v interface{}) error {
	data, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// decodeJSON decodes data into v, rejecting unknown fields.
func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeBlueprintBody reads a blueprint from the request body. A
// text/x-toml content type selects the TOML codec; anything else is
// treated as JSON.
func decodeBlueprintBody(r *http.Request) (blueprint.Blueprint, error) {
	data, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return blueprint.Blueprint{}, err
	}

	if r.Header.Get("Content-Type") == "text/x-toml" {
		return blueprint.ParseTOML(data)
	}

	var bp blueprint.Blueprint
	if err := decodeJSON(data, &bp); err != nil {
		return blueprint.Blueprint{}, &blueprint.ParseError{Message: err.Error()}
	}
	if bp.Name == "" {
		return blueprint.Blueprint{}, &blueprint.ParseError{Message: "missing required field: name"}
	}
	if bp.Modules == nil {
		bp.Modules = []blueprint.Package{}
	}
	if bp.Packages == nil {
		bp.Packages = []blueprint.Package{}
	}
	return bp, nil
}
