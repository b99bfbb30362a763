// Package api implements the stateless REST handlers that sequence the
// blueprint store, package catalog, and compose queue under their own
// locks and translate component errors into JSON envelopes.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/kean0048/lorax-for-legion/internal/blueprintstore"
	"github.com/kean0048/lorax-for-legion/internal/queue"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

const apiPrefix = "/api/v0"

// Server is the HTTP surface over C2-C4; it holds no mutable state of its
// own beyond what it needs to route requests.
type Server struct {
	logger  *log.Logger
	store   *blueprintstore.Store
	catalog *rpmmd.Catalog
	queue   *queue.Queue
	router  *httprouter.Router

	buildVersion string
}

// NewServer wires all v0 endpoints onto a fresh httprouter.Router.
func NewServer(logger *log.Logger, store *blueprintstore.Store, catalog *rpmmd.Catalog, q *queue.Queue, buildVersion string) *Server {
	s := &Server{
		logger:       logger,
		store:        store,
		catalog:      catalog,
		queue:        q,
		buildVersion: buildVersion,
	}

	s.router = httprouter.New()
	s.router.RedirectTrailingSlash = false
	s.router.RedirectFixedPath = false
	s.router.MethodNotAllowed = http.HandlerFunc(methodNotAllowedHandler)
	s.router.NotFound = http.HandlerFunc(notFoundHandler)

	s.router.GET(apiPrefix+"/test", s.testHandler)
	s.router.GET(apiPrefix+"/status", s.statusHandler)

	s.router.GET(apiPrefix+"/blueprints/list", s.blueprintsListHandler)
	s.router.GET(apiPrefix+"/blueprints/info/:names", s.blueprintsInfoHandler)
	s.router.GET(apiPrefix+"/blueprints/changes/:names", s.blueprintsChangesHandler)
	s.router.POST(apiPrefix+"/blueprints/new", s.blueprintsNewHandler)
	s.router.DELETE(apiPrefix+"/blueprints/delete/:name", s.blueprintsDeleteHandler)
	s.router.POST(apiPrefix+"/blueprints/workspace", s.blueprintsWorkspaceWriteHandler)
	s.router.DELETE(apiPrefix+"/blueprints/workspace/:name", s.blueprintsWorkspaceDeleteHandler)
	s.router.POST(apiPrefix+"/blueprints/undo/:name/:commit", s.blueprintsUndoHandler)
	s.router.POST(apiPrefix+"/blueprints/tag/:name", s.blueprintsTagHandler)
	s.router.GET(apiPrefix+"/blueprints/diff/:name/:from/:to", s.blueprintsDiffHandler)
	s.router.GET(apiPrefix+"/blueprints/freeze/:names", s.blueprintsFreezeHandler)
	s.router.GET(apiPrefix+"/blueprints/depsolve/:names", s.blueprintsDepsolveHandler)

	s.router.GET(apiPrefix+"/projects/list", s.projectsListHandler)
	s.router.GET(apiPrefix+"/projects/source/list", s.sourcesListHandler)
	s.router.GET(apiPrefix+"/projects/source/info/:names", s.sourcesInfoHandler)
	s.router.POST(apiPrefix+"/projects/source/new", s.sourcesNewHandler)
	s.router.DELETE(apiPrefix+"/projects/source/delete/:name", s.sourcesDeleteHandler)
	s.router.GET(apiPrefix+"/projects/info/:names", s.projectsInfoHandler)
	s.router.GET(apiPrefix+"/projects/depsolve/:names", s.projectsDepsolveHandler)
	s.router.GET(apiPrefix+"/modules/list", s.modulesListHandler)
	s.router.GET(apiPrefix+"/modules/list/:globs", s.modulesListHandler)
	s.router.GET(apiPrefix+"/modules/info/:names", s.modulesInfoHandler)

	s.router.POST(apiPrefix+"/compose", s.composeStartHandler)
	s.router.GET(apiPrefix+"/compose/types", s.composeTypesHandler)
	s.router.GET(apiPrefix+"/compose/queue", s.composeQueueHandler)
	s.router.GET(apiPrefix+"/compose/finished", s.composeFinishedHandler)
	s.router.GET(apiPrefix+"/compose/failed", s.composeFailedHandler)
	s.router.GET(apiPrefix+"/compose/status/:uuids", s.composeStatusHandler)
	s.router.GET(apiPrefix+"/compose/info/:uuid", s.composeInfoHandler)
	s.router.GET(apiPrefix+"/compose/metadata/:uuid", s.composeMetadataHandler)
	s.router.GET(apiPrefix+"/compose/results/:uuid", s.composeResultsHandler)
	s.router.GET(apiPrefix+"/compose/logs/:uuid", s.composeLogsHandler)
	s.router.GET(apiPrefix+"/compose/image/:uuid", s.composeImageHandler)
	s.router.GET(apiPrefix+"/compose/log/:uuid", s.composeLogTailHandler)
	s.router.DELETE(apiPrefix+"/compose/cancel/:uuid", s.composeCancelHandler)
	s.router.DELETE(apiPrefix+"/compose/delete/:uuids", s.composeDeleteHandler)

	return s
}

// Serve runs the HTTP server over listener (normally a Unix domain
// socket) until it is closed.
func (s *Server) Serve(listener net.Listener) error {
	server := http.Server{Handler: s}

	err := server.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if s.logger != nil {
		s.logger.Println(request.Method, request.URL.Path)
	}

	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	s.router.ServeHTTP(writer, request)
}

func (s *Server) testHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("API v0 test"))
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, statusAPIResponse{
		API:           "0",
		Build:         s.buildVersion,
		DBVersion:     "0",
		SchemaVersion: "0",
		DBSupported:   false,
	})
}

// jsonErrorf writes the {status:false, error:{msg}} envelope every failed
// request is reported with.
func jsonErrorf(w http.ResponseWriter, code int, format string, args ...interface{}) {
	writeJSON(w, code, errorResponse{Status: false, Error: errorDetail{Msg: fmt.Sprintf(format, args...)}})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.WriteHeader(code)
	// ignore the encode error: there's nothing useful to do with it once
	// headers are already written.
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	jsonErrorf(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	jsonErrorf(w, http.StatusNotFound, "not found")
}
