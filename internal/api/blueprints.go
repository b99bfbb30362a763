package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/blueprintstore"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

func sortBlueprintChanges(changes []blueprintChange) {
	sort.Slice(changes, func(i, j int) bool {
		return strings.ToLower(changes[i].Name) < strings.ToLower(changes[j].Name)
	})
}

func sortBlueprints(recipes []blueprint.Blueprint) {
	sort.Slice(recipes, func(i, j int) bool {
		return strings.ToLower(recipes[i].Name) < strings.ToLower(recipes[j].Name)
	})
}

func sortItemErrors(errs []itemError) {
	sort.Slice(errs, func(i, j int) bool {
		return strings.ToLower(errs[i].Name) < strings.ToLower(errs[j].Name)
	})
}

func (s *Server) blueprintsListHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	offset, limit, err := pagingParams(r)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	names, err := s.store.List(branchParam(r))
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	page := takeLimits(sortedByLowerName(names), offset, limit)
	writeJSON(w, http.StatusOK, blueprintsListResponse{
		Recipes: page,
		Offset:  offset,
		Limit:   limit,
		Total:   len(names),
	})
}

func (s *Server) blueprintsInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)

	var changes []blueprintChange
	var recipes []blueprint.Blueprint
	var errs []itemError

	for _, name := range splitNames(ps.ByName("names")) {
		ws, wsErr := s.store.ReadWorkspace(branch, name)
		if wsErr != nil {
			errs = append(errs, itemError{Name: name, Msg: wsErr.Error()})
			continue
		}
		committed, commitErr := s.store.ReadCommit(branch, name, "")

		switch {
		case ws == nil && commitErr != nil:
			errs = append(errs, itemError{Name: name, Msg: commitErr.Error()})
		case ws != nil && commitErr != nil:
			changes = append(changes, blueprintChange{Name: name, Changed: true})
			recipes = append(recipes, *ws)
		case ws == nil:
			changes = append(changes, blueprintChange{Name: name, Changed: false})
			recipes = append(recipes, *committed)
		default:
			changes = append(changes, blueprintChange{Name: name, Changed: !ws.Equal(committed)})
			recipes = append(recipes, *ws)
		}
	}

	sortBlueprintChanges(changes)
	sortBlueprints(recipes)
	sortItemErrors(errs)

	writeJSON(w, http.StatusOK, blueprintsInfoResponse{Changes: changes, Recipes: recipes, Errors: errs})
}

func (s *Server) blueprintsChangesHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)
	offset, limit, err := pagingParams(r)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	var recipes []blueprintChanges
	var errs []itemError

	for _, name := range splitNames(ps.ByName("names")) {
		commits, total, err := s.store.ListCommits(branch, name, offset, limit)
		if err != nil {
			errs = append(errs, itemError{Name: name, Msg: err.Error()})
			continue
		}
		recipes = append(recipes, blueprintChanges{
			Name:    name,
			Changes: toWireCommits(commits),
			Total:   total,
		})
	}

	sort.SliceStable(recipes, func(i, j int) bool { return recipes[i].Name < recipes[j].Name })
	sortItemErrors(errs)

	writeJSON(w, http.StatusOK, blueprintsChangesResponse{Recipes: recipes, Errors: errs, Offset: offset, Limit: limit})
}

func toWireCommits(commits []blueprintstore.Commit) []blueprintstoreCommit {
	out := make([]blueprintstoreCommit, 0, len(commits))
	for _, c := range commits {
		out = append(out, blueprintstoreCommit{
			Commit:    c.Hash,
			Message:   c.Message,
			Timestamp: c.Timestamp,
			Revision:  c.Revision,
			Blueprint: c.Blueprint,
		})
	}
	return out
}

func (s *Server) blueprintsNewHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	branch := branchParam(r)

	bp, err := decodeBlueprintBody(r)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	if _, err := s.store.Commit(branch, bp.Name, bp); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

func (s *Server) blueprintsDeleteHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)
	if err := s.store.Delete(branch, ps.ByName("name")); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

func (s *Server) blueprintsWorkspaceWriteHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	branch := branchParam(r)

	bp, err := decodeBlueprintBody(r)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	if err := s.store.WorkspaceWrite(branch, bp.Name, bp); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

func (s *Server) blueprintsWorkspaceDeleteHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)
	if err := s.store.WorkspaceDelete(branch, ps.ByName("name")); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

func (s *Server) blueprintsUndoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)
	name := ps.ByName("name")

	if _, err := s.store.Revert(branch, name, ps.ByName("commit")); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	reverted, err := s.store.ReadCommit(branch, name, "")
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := s.store.WorkspaceWrite(branch, name, *reverted); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

func (s *Server) blueprintsTagHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)
	tagged, err := s.store.Tag(branch, ps.ByName("name"))
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: tagged})
}

func (s *Server) blueprintsDiffHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)
	name := ps.ByName("name")

	oldBP, err := s.resolveCommitRef(branch, name, ps.ByName("from"))
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	newBP, err := s.resolveToRef(branch, name, ps.ByName("to"))
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, diffResponse{Diff: blueprint.Diff(*oldBP, *newBP)})
}

// resolveCommitRef resolves a diff endpoint's "from"/commit-hash reference;
// NEWEST means the branch tip.
func (s *Server) resolveCommitRef(branch, name, ref string) (*blueprint.Blueprint, error) {
	if ref == "NEWEST" {
		return s.store.ReadCommit(branch, name, "")
	}
	return s.store.ReadCommit(branch, name, ref)
}

// resolveToRef additionally accepts WORKSPACE for the diff endpoint's "to"
// reference.
func (s *Server) resolveToRef(branch, name, ref string) (*blueprint.Blueprint, error) {
	switch ref {
	case "WORKSPACE":
		bp, err := s.store.ReadWorkspace(branch, name)
		if err != nil {
			return nil, err
		}
		if bp == nil {
			return nil, &blueprintstore.NotFoundError{Message: "no workspace entry for " + name}
		}
		return bp, nil
	case "NEWEST":
		return s.store.ReadCommit(branch, name, "")
	default:
		return s.store.ReadCommit(branch, name, ref)
	}
}

// resolveForFreeze returns the workspace draft if present, else the branch
// tip; NotFound only if neither exists.
func (s *Server) resolveForFreeze(branch, name string) (*blueprint.Blueprint, error) {
	ws, err := s.store.ReadWorkspace(branch, name)
	if err == nil && ws != nil {
		return ws, nil
	}
	return s.store.ReadCommit(branch, name, "")
}

func (s *Server) blueprintsFreezeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)

	var entries []freezeEntry
	var errs []itemError

	for _, name := range sortedByLowerName(splitNames(ps.ByName("names"))) {
		bp, err := s.resolveForFreeze(branch, name)
		if err != nil {
			errs = append(errs, itemError{Name: name, Msg: err.Error()})
			continue
		}

		projects := sortedByLowerName(bp.Names())
		deps, err := s.catalog.Depsolve(projects)
		if err != nil {
			errs = append(errs, itemError{Name: name, Msg: err.Error()})
			continue
		}

		nevra := make(map[string]string, len(deps))
		for _, d := range deps {
			nevra[d.Name] = d.NEVRA
		}
		frozen := bp.Freeze(nevra)
		entries = append(entries, freezeEntry{Recipe: frozen})
	}

	writeJSON(w, http.StatusOK, freezeResponse{Recipes: entries, Errors: errs})
}

func (s *Server) blueprintsDepsolveHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	branch := branchParam(r)

	var entries []depsolveEntry
	var errs []itemError

	for _, name := range sortedByLowerName(splitNames(ps.ByName("names"))) {
		bp, err := s.resolveForFreeze(branch, name)
		if err != nil {
			errs = append(errs, itemError{Name: name, Msg: err.Error()})
			continue
		}

		projects := sortedByLowerName(bp.Names())
		deps, err := s.catalog.Depsolve(projects)
		if err != nil {
			errs = append(errs, itemError{Name: name, Msg: err.Error()})
			continue
		}

		projectSet := make(map[string]bool, len(projects))
		for _, p := range projects {
			projectSet[p] = true
		}
		var modules []rpmmd.Dep
		for _, d := range deps {
			if projectSet[d.Name] {
				modules = append(modules, d)
			}
		}

		entries = append(entries, depsolveEntry{Recipe: *bp, Dependencies: deps, Modules: modules})
	}

	writeJSON(w, http.StatusOK, depsolveResponse{Recipes: entries, Errors: errs})
}
