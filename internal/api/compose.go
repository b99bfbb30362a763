package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/kean0048/lorax-for-legion/internal/queue"
)

func (s *Server) composeStartHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req composeStartRequest
	if err := decodeJSONBody(r, &req); err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	branch := req.Branch
	if branch == "" {
		branch = "master"
	}

	testMode := 0
	if v := r.URL.Query().Get("test"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			jsonErrorf(w, http.StatusBadRequest, "invalid test parameter: %v", err)
			return
		}
		testMode = parsed
	}

	bp, err := s.resolveForFreeze(branch, req.BlueprintName)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	projects := sortedByLowerName(bp.Names())
	deps, err := s.catalog.Depsolve(projects)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	nevra := make(map[string]string, len(deps))
	for _, d := range deps {
		nevra[d.Name] = d.NEVRA
	}
	frozen := bp.Freeze(nevra)

	// empty when the blueprint only exists as a workspace draft
	commitHash, err := s.store.TipHash(branch, req.BlueprintName)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	id, err := s.queue.Submit(req.BlueprintName, branch, req.ComposeType, frozen, deps, commitHash, testMode)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, composeStartResponse{Status: true, BuildID: id.String()})
}

func (s *Server) composeTypesHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	names := s.queue.EnabledComposeTypes()
	entries := make([]composeTypeEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, composeTypeEntry{Name: n, Enabled: true})
	}
	writeJSON(w, http.StatusOK, composeTypesResponse{Types: entries})
}

func (s *Server) composeQueueHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	newRecords, runRecords, err := s.queue.QueueStatus()
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, composeQueueResponse{New: newRecords, Run: runRecords})
}

func (s *Server) composeFinishedHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	records, err := s.queue.BuildStatus(queue.StatusFinished)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, composeFinishedResponse{Finished: records})
}

func (s *Server) composeFailedHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	records, err := s.queue.BuildStatus(queue.StatusFailed)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, composeFailedResponse{Failed: records})
}

// parseUUID lowercases and trims raw before parsing, so uuids pasted from
// logs or shell history resolve regardless of case.
func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(strings.ToLower(strings.TrimSpace(raw)))
}

func (s *Server) composeStatusHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var statuses []uuidStatusEntry
	var errs []itemError

	for _, raw := range splitNames(ps.ByName("uuids")) {
		id, err := parseUUID(raw)
		if err != nil {
			errs = append(errs, itemError{Name: raw, Msg: err.Error()})
			continue
		}
		status, err := s.queue.UUIDStatus(id)
		if err != nil {
			errs = append(errs, itemError{Name: raw, Msg: err.Error()})
			continue
		}
		statuses = append(statuses, uuidStatusEntry{UUID: id.String(), Status: status.String()})
	}

	writeJSON(w, http.StatusOK, composeStatusResponse{UUIDs: statuses, Errors: errs})
}

func (s *Server) composeInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseUUID(ps.ByName("uuid"))
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	info, err := s.queue.UUIDInfo(id)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) composeMetadataHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.streamComposeTar(w, ps.ByName("uuid"), true, false, false, "metadata")
}

func (s *Server) composeResultsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.streamComposeTar(w, ps.ByName("uuid"), true, true, true, "")
}

func (s *Server) composeLogsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.streamComposeTar(w, ps.ByName("uuid"), false, false, true, "logs")
}

func (s *Server) streamComposeTar(w http.ResponseWriter, rawUUID string, metadata, image, logs bool, suffix string) {
	id, err := parseUUID(rawUUID)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	filename := id.String() + ".tar"
	if suffix != "" {
		filename = fmt.Sprintf("%s-%s.tar", id.String(), suffix)
	}

	w.Header().Set("Content-Type", "application/x-tar")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)

	if err := s.queue.UUIDTar(id, metadata, image, logs, w); err != nil {
		// headers are already sent; nothing more to do but log it.
		if s.logger != nil {
			s.logger.Println("uuid_tar", rawUUID, err)
		}
	}
}

func (s *Server) composeImageHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseUUID(ps.ByName("uuid"))
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	filename, path, err := s.queue.UUIDImage(id)
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	http.ServeFile(w, r, path)
}

func (s *Server) composeLogTailHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseUUID(ps.ByName("uuid"))
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	// size is in kibibytes
	sizeKB := 1024
	if v := r.URL.Query().Get("size"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			jsonErrorf(w, http.StatusBadRequest, "invalid size parameter: %v", err)
			return
		}
		sizeKB = parsed
	}

	if status, statusErr := s.queue.UUIDStatus(id); statusErr == nil && status == queue.StatusWaiting {
		writeJSON(w, http.StatusOK, errorResponse{
			Status: false,
			Error:  errorDetail{Msg: "Build has not started yet. No logs to view"},
		})
		return
	}

	data, err := s.queue.UUIDLog(id, sizeKB*1024)
	if err != nil {
		if _, ok := err.(*queue.LogUnavailableError); ok {
			writeJSON(w, http.StatusOK, errorResponse{Status: false, Error: errorDetail{Msg: err.Error()}})
			return
		}
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *Server) composeCancelHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseUUID(ps.ByName("uuid"))
	if err != nil {
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	if err := s.queue.UUIDCancel(id); err != nil {
		if _, ok := err.(*queue.CancelError); ok {
			writeJSON(w, http.StatusOK, uuidActionResponse{Status: false, UUID: id.String(), Msg: err.Error()})
			return
		}
		jsonErrorf(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, uuidActionResponse{Status: true, UUID: id.String()})
}

func (s *Server) composeDeleteHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var uuids []uuidActionResponse
	var errs []itemError

	for _, raw := range splitNames(ps.ByName("uuids")) {
		id, err := parseUUID(raw)
		if err != nil {
			errs = append(errs, itemError{Name: raw, Msg: err.Error()})
			continue
		}

		if err := s.queue.UUIDDelete(id); err != nil {
			if _, ok := err.(*queue.CancelError); ok {
				uuids = append(uuids, uuidActionResponse{Status: false, UUID: id.String(), Msg: err.Error()})
				continue
			}
			errs = append(errs, itemError{Name: raw, Msg: err.Error()})
			continue
		}
		uuids = append(uuids, uuidActionResponse{Status: true, UUID: id.String()})
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })

	writeJSON(w, http.StatusOK, composeDeleteResponse{UUIDs: uuids, Errors: errs})
}
