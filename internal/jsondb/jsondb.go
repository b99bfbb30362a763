// Package jsondb implements a tiny, atomic, one-file-per-key JSON store.
//
// Each key is stored as "<dir>/<key>.json". Writes go to a temporary file in
// the same directory and are renamed into place, so a reader never observes
// a partially written file and a crash during a write leaves the previous
// version (or nothing) on disk.
package jsondb

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// JSONDatabase stores JSON documents under a directory, one file per key.
type JSONDatabase struct {
	dir  string
	mode os.FileMode
}

// New creates a JSONDatabase rooted at dir. dir is created by the first
// Write if it does not exist. mode is used for newly written files.
func New(dir string, mode os.FileMode) *JSONDatabase {
	return &JSONDatabase{dir: dir, mode: mode}
}

func (db *JSONDatabase) path(key string) string {
	return filepath.Join(db.dir, key+".json")
}

// Write serializes v as JSON and atomically replaces the file for key.
func (db *JSONDatabase) Write(key string, v interface{}) error {
	if err := os.MkdirAll(db.dir, 0755); err != nil {
		return fmt.Errorf("jsondb: cannot create %s: %v", db.dir, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("jsondb: cannot marshal %s: %v", key, err)
	}

	tmp, err := ioutil.TempFile(db.dir, ".tmp-"+sanitize(key)+"-")
	if err != nil {
		return fmt.Errorf("jsondb: cannot create temp file for %s: %v", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsondb: cannot write %s: %v", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsondb: cannot sync %s: %v", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsondb: cannot close %s: %v", key, err)
	}
	if err := os.Chmod(tmpName, db.mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsondb: cannot chmod %s: %v", key, err)
	}

	if err := os.Rename(tmpName, db.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsondb: cannot rename %s: %v", key, err)
	}

	return nil
}

// Read deserializes the document for key into v. The second return value is
// false (with a nil error) if the key doesn't exist.
func (db *JSONDatabase) Read(key string, v interface{}) (bool, error) {
	data, err := ioutil.ReadFile(db.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("jsondb: cannot read %s: %v", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("jsondb: cannot unmarshal %s: %v", key, err)
	}

	return true, nil
}

// Delete removes the document for key. It is not an error for the key to
// already be absent.
func (db *JSONDatabase) Delete(key string) error {
	err := os.Remove(db.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("jsondb: cannot delete %s: %v", key, err)
	}
	return nil
}

// List returns all keys currently stored.
func (db *JSONDatabase) List() ([]string, error) {
	entries, err := ioutil.ReadDir(db.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsondb: cannot list %s: %v", db.dir, err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}

	return keys, nil
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == os.PathSeparator {
			return '-'
		}
		return r
	}, key)
}
