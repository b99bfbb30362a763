package api

import (
	"io/ioutil"
	"net/http"

	"github.com/BurntSushi/toml"
	"github.com/julienschmidt/httprouter"

	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

func (s *Server) projectsListHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	offset, limit, err := pagingParams(r)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	projects, err := s.catalog.ProjectsList()
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	if offset > len(projects) {
		offset = len(projects)
	}
	page := projects[offset:]
	if limit >= 0 && limit < len(page) {
		page = page[:limit]
	}

	writeJSON(w, http.StatusOK, projectsListResponse{
		Projects: page,
		Offset:   offset,
		Limit:    limit,
		Total:    len(projects),
	})
}

func (s *Server) projectsInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	names := splitNames(ps.ByName("names"))

	infos, err := s.catalog.ProjectsInfo(names)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, projectsInfoResponse{Projects: infos})
}

func (s *Server) projectsDepsolveHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	names := splitNames(ps.ByName("names"))

	deps, err := s.catalog.ProjectsDepsolve(names)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, projectsDepsolveResponse{Projects: deps})
}

func (s *Server) modulesListHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	offset, limit, err := pagingParams(r)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	var globs []string
	if raw := ps.ByName("globs"); raw != "" {
		globs = splitNames(raw)
	}

	modules, err := s.catalog.ModulesList(globs)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	if offset > len(modules) {
		offset = len(modules)
	}
	page := modules[offset:]
	if limit >= 0 && limit < len(page) {
		page = page[:limit]
	}

	writeJSON(w, http.StatusOK, modulesListResponse{
		Modules: page,
		Offset:  offset,
		Limit:   limit,
		Total:   len(modules),
	})
}

func (s *Server) sourcesListHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, sourcesListResponse{Sources: s.catalog.SourcesList()})
}

func (s *Server) sourcesInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sources := make(map[string]rpmmd.SourceConfig)
	var errs []itemError

	names := splitNames(ps.ByName("names"))
	if len(names) == 1 && names[0] == "*" {
		names = s.catalog.SourcesList()
	}

	for _, name := range names {
		sc, ok := s.catalog.SourceInfo(name)
		if !ok {
			errs = append(errs, itemError{Name: name, Msg: "unknown source: " + name})
			continue
		}
		sources[name] = sc
	}

	writeJSON(w, http.StatusOK, sourcesInfoResponse{Sources: sources, Errors: errs})
}

// sourcesNewHandler accepts a source as JSON or TOML, mirroring the
// blueprint endpoints' content negotiation.
func (s *Server) sourcesNewHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := ioutil.ReadAll(r.Body)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	var sc rpmmd.SourceConfig
	if r.Header.Get("Content-Type") == "text/x-toml" {
		err = toml.Unmarshal(data, &sc)
	} else {
		err = decodeJSON(data, &sc)
	}
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	if err := s.catalog.SourceNew(sc); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

func (s *Server) sourcesDeleteHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.catalog.SourceDelete(ps.ByName("name")); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

func (s *Server) modulesInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	names := splitNames(ps.ByName("names"))

	infos, err := s.catalog.ModulesInfo(names)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, modulesInfoResponse{Modules: infos})
}
