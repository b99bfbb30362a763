// Package blueprintstore implements the versioned blueprint repository: a
// content-versioned store of TOML blueprints with per-branch commit
// history, tagged revisions, revert and a workspace overlay of uncommitted
// drafts.
//
// Each branch is held as one in-memory document behind a single exclusive
// lock and persisted as a whole after every mutation; branches load lazily
// on first touch.
package blueprintstore

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/jsondb"
)

const defaultBranch = "master"

// Commit is a single snapshot of a blueprint on a branch.
type Commit struct {
	Hash      string              `json:"commit"`
	Message   string              `json:"message"`
	Timestamp string              `json:"timestamp"`
	Revision  *int                `json:"revision,omitempty"`
	Blueprint blueprint.Blueprint `json:"blueprint"`
}

// branchData is the unit persisted to disk, one document per branch.
type branchData struct {
	// Commits maps blueprint name -> ordered list of commit hashes, oldest first.
	Commits map[string][]string `json:"commits"`
	// Changes maps blueprint name -> commit hash -> commit record.
	Changes map[string]map[string]Commit `json:"changes"`
	// Workspace maps blueprint name -> uncommitted draft.
	Workspace map[string]blueprint.Blueprint `json:"workspace"`
}

func newBranchData() *branchData {
	return &branchData{
		Commits:   make(map[string][]string),
		Changes:   make(map[string]map[string]Commit),
		Workspace: make(map[string]blueprint.Blueprint),
	}
}

// Store is the blueprint repository: branches, commit history, tags and
// the workspace overlay, all behind a single exclusive lock.
type Store struct {
	mu       sync.Mutex
	db       *jsondb.JSONDatabase
	branches map[string]*branchData
}

// New creates a Store persisted under dir. Existing branches are not
// eagerly loaded; they are read from disk the first time they're touched.
func New(dir string) *Store {
	return &Store{
		db:       jsondb.New(dir, 0600),
		branches: make(map[string]*branchData),
	}
}

func normalizeBranch(branch string) string {
	if branch == "" {
		return defaultBranch
	}
	return branch
}

// branch returns the in-memory branchData for name, loading it from disk on
// first access. Caller must hold s.mu.
func (s *Store) branch(name string) (*branchData, error) {
	if bd, ok := s.branches[name]; ok {
		return bd, nil
	}

	bd := newBranchData()
	exists, err := s.db.Read(name, bd)
	if err != nil {
		return nil, &StorageError{err.Error()}
	}
	if !exists {
		bd = newBranchData()
	}
	s.branches[name] = bd
	return bd, nil
}

func (s *Store) persist(name string, bd *branchData) error {
	if err := s.db.Write(name, bd); err != nil {
		return &StorageError{err.Error()}
	}
	return nil
}

func randomSHA1() (string, error) {
	hash := sha1.New()
	data := make([]byte, 20)
	n, err := rand.Read(data)
	if err != nil {
		return "", err
	} else if n != 20 {
		return "", errors.New("randomSHA1: short read from rand")
	}
	_, _ = hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// List returns the names of all blueprints with at least one commit on
// branch.
func (s *Store) List(branch string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bd, err := s.branch(normalizeBranch(branch))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(bd.Commits))
	for name, commits := range bd.Commits {
		if len(commits) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadCommit returns the blueprint stored at commit on branch. If commit is
// empty, the tip (HEAD) is returned.
func (s *Store) ReadCommit(branch, name, commit string) (*blueprint.Blueprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bd, err := s.branch(normalizeBranch(branch))
	if err != nil {
		return nil, err
	}

	commits := bd.Commits[name]
	if len(commits) == 0 {
		return nil, &NotFoundError{fmt.Sprintf("unknown blueprint: %s", name)}
	}

	hash := commit
	if hash == "" {
		hash = commits[len(commits)-1]
	}

	c, ok := bd.Changes[name][hash]
	if !ok {
		return nil, &NotFoundError{fmt.Sprintf("unknown commit %s for blueprint %s", hash, name)}
	}

	bp := c.Blueprint.DeepCopy()
	return &bp, nil
}

// ReadWorkspace returns the workspace draft for (branch, name), or nil if
// there is none.
func (s *Store) ReadWorkspace(branch, name string) (*blueprint.Blueprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bd, err := s.branch(normalizeBranch(branch))
	if err != nil {
		return nil, err
	}

	bp, ok := bd.Workspace[name]
	if !ok {
		return nil, nil
	}
	cp := bp.DeepCopy()
	return &cp, nil
}

// Commit persists bp under name on branch, bumping its version against the
// previous tip, and returns the new commit hash. It also writes the stored
// content through to the workspace entry, so a commit always clears
// workspace drift.
func (s *Store) Commit(branch, name string, bp blueprint.Blueprint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch = normalizeBranch(branch)
	bd, err := s.branch(branch)
	if err != nil {
		return "", err
	}

	if err := bp.Validate(); err != nil {
		return "", err
	}

	var oldVersion string
	if commits := bd.Commits[name]; len(commits) > 0 {
		oldVersion = bd.Changes[name][commits[len(commits)-1]].Blueprint.Version
	}

	version, err := blueprint.BumpVersion(oldVersion, bp.Version)
	if err != nil {
		return "", err
	}
	bp.Version = version

	hash, err := randomSHA1()
	if err != nil {
		return "", &StorageError{err.Error()}
	}

	c := Commit{
		Hash:      hash,
		Message:   fmt.Sprintf("Blueprint %s, version %s saved.", name, version),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Blueprint: bp,
	}

	if bd.Changes[name] == nil {
		bd.Changes[name] = make(map[string]Commit)
	}
	bd.Changes[name][hash] = c
	bd.Commits[name] = append(bd.Commits[name], hash)
	bd.Workspace[name] = bp.DeepCopy()

	if err := s.persist(branch, bd); err != nil {
		return "", err
	}

	return hash, nil
}

// WorkspaceWrite upserts the workspace draft for (branch, name). No history
// is recorded.
func (s *Store) WorkspaceWrite(branch, name string, bp blueprint.Blueprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := bp.Validate(); err != nil {
		return err
	}

	branch = normalizeBranch(branch)
	bd, err := s.branch(branch)
	if err != nil {
		return err
	}

	bd.Workspace[name] = bp.DeepCopy()
	return s.persist(branch, bd)
}

// WorkspaceDelete removes the workspace draft for (branch, name). Committed
// history is untouched.
func (s *Store) WorkspaceDelete(branch, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch = normalizeBranch(branch)
	bd, err := s.branch(branch)
	if err != nil {
		return err
	}

	if _, ok := bd.Workspace[name]; !ok {
		return &NotFoundError{fmt.Sprintf("no workspace entry for %s", name)}
	}
	delete(bd.Workspace, name)
	return s.persist(branch, bd)
}

// Delete removes name from the branch tip and clears its workspace entry.
// The commit records are kept, so Revert to one of its commits restores the
// blueprint; ListCommits then shows only the commits made after the delete.
func (s *Store) Delete(branch, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch = normalizeBranch(branch)
	bd, err := s.branch(branch)
	if err != nil {
		return err
	}

	if len(bd.Commits[name]) == 0 {
		return &NotFoundError{fmt.Sprintf("unknown blueprint: %s", name)}
	}

	delete(bd.Commits, name)
	delete(bd.Workspace, name)

	return s.persist(branch, bd)
}

// Revert creates a new commit whose content equals the blueprint at commit,
// and returns the new commit hash.
func (s *Store) Revert(branch, name, commit string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch = normalizeBranch(branch)
	bd, err := s.branch(branch)
	if err != nil {
		return "", err
	}

	c, ok := bd.Changes[name][commit]
	if !ok {
		return "", &NotFoundError{fmt.Sprintf("unknown commit %s for blueprint %s", commit, name)}
	}

	hash, err := randomSHA1()
	if err != nil {
		return "", &StorageError{err.Error()}
	}

	newCommit := Commit{
		Hash:      hash,
		Message:   fmt.Sprintf("%s.toml reverted to commit %s", name, commit),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Blueprint: c.Blueprint.DeepCopy(),
	}

	bd.Changes[name][hash] = newCommit
	bd.Commits[name] = append(bd.Commits[name], hash)
	bd.Workspace[name] = c.Blueprint.DeepCopy()

	if err := s.persist(branch, bd); err != nil {
		return "", err
	}

	return hash, nil
}

// ListCommits returns up to limit commits for (branch, name), newest first,
// skipping the first offset. total is the full commit count before paging.
func (s *Store) ListCommits(branch, name string, offset, limit int) (commits []Commit, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch = normalizeBranch(branch)
	bd, err := s.branch(branch)
	if err != nil {
		return nil, 0, err
	}

	hashes := bd.Commits[name]
	if len(hashes) == 0 {
		return nil, 0, &NotFoundError{fmt.Sprintf("unknown blueprint: %s", name)}
	}
	commits = make([]Commit, 0, len(hashes))
	for i := len(hashes) - 1; i >= 0; i-- {
		commits = append(commits, bd.Changes[name][hashes[i]])
	}
	total = len(commits)

	if offset > len(commits) {
		offset = len(commits)
	}
	commits = commits[offset:]
	if limit >= 0 && limit < len(commits) {
		commits = commits[:limit]
	}

	return commits, total, nil
}

// TipHash returns the hash of the latest commit for (branch, name), or ""
// with no error when the blueprint only exists as a workspace draft.
func (s *Store) TipHash(branch, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bd, err := s.branch(normalizeBranch(branch))
	if err != nil {
		return "", err
	}

	hashes := bd.Commits[name]
	if len(hashes) == 0 {
		return "", nil
	}
	return hashes[len(hashes)-1], nil
}

// Tag assigns the next per-blueprint revision to the tip commit. It returns
// false, with no error, if the tip already carries a revision (idempotent).
func (s *Store) Tag(branch, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch = normalizeBranch(branch)
	bd, err := s.branch(branch)
	if err != nil {
		return false, err
	}

	hashes := bd.Commits[name]
	if len(hashes) == 0 {
		return false, &NotFoundError{fmt.Sprintf("unknown blueprint: %s", name)}
	}

	tip := hashes[len(hashes)-1]
	tipCommit := bd.Changes[name][tip]
	if tipCommit.Revision != nil {
		return false, nil
	}

	revision := 0
	for i := len(hashes) - 1; i >= 0; i-- {
		if c := bd.Changes[name][hashes[i]]; c.Revision != nil {
			revision = *c.Revision
			break
		}
	}
	revision++

	tipCommit.Revision = &revision
	bd.Changes[name][tip] = tipCommit

	if err := s.persist(branch, bd); err != nil {
		return false, err
	}

	return true, nil
}
