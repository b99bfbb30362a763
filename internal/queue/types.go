package queue

import (
	"io/ioutil"
	"sort"
)

// knownComposeTypes is the closed set of compose types Composer recognizes;
// a deployment enables a subset of these by providing matching
// subdirectories under its share directory.
var knownComposeTypes = []string{
	"tar", "live-iso", "partitioned-disk", "qcow2", "ami", "vhd", "vmdk",
}

// ComposeTypes discovers the compose types enabled for this deployment by
// scanning shareDir for subdirectories matching knownComposeTypes.
func ComposeTypes(shareDir string) ([]string, error) {
	entries, err := ioutil.ReadDir(shareDir)
	if err != nil {
		return nil, &QueueError{Message: err.Error()}
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			present[e.Name()] = true
		}
	}

	var types []string
	for _, t := range knownComposeTypes {
		if present[t] {
			types = append(types, t)
		}
	}
	sort.Strings(types)

	return types, nil
}

func isKnownComposeType(composeType string, enabled []string) bool {
	for _, t := range enabled {
		if t == composeType {
			return true
		}
	}
	return false
}
