package api

import (
	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/queue"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

type statusResponse struct {
	Status bool `json:"status"`
}

type errorDetail struct {
	Msg string `json:"msg"`
}

type errorResponse struct {
	Status bool        `json:"status"`
	Error  errorDetail `json:"error"`
}

type itemError struct {
	Name string `json:"recipe"`
	Msg  string `json:"msg"`
}

type blueprintsListResponse struct {
	Recipes []string `json:"recipes"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
	Total   int      `json:"total"`
}

type blueprintChange struct {
	Name    string `json:"name"`
	Changed bool   `json:"changed"`
}

type blueprintsInfoResponse struct {
	Changes []blueprintChange     `json:"changes"`
	Recipes []blueprint.Blueprint `json:"recipes"`
	Errors  []itemError           `json:"errors"`
}

type blueprintChanges struct {
	Name    string                 `json:"name"`
	Changes []blueprintstoreCommit `json:"changes"`
	Total   int                    `json:"total"`
}

// blueprintstoreCommit mirrors blueprintstore.Commit's JSON shape; declared
// here rather than imported so the wire format is pinned independently of
// the store's internal struct.
type blueprintstoreCommit struct {
	Commit    string              `json:"commit"`
	Message   string              `json:"message"`
	Timestamp string              `json:"timestamp"`
	Revision  *int                `json:"revision,omitempty"`
	Blueprint blueprint.Blueprint `json:"blueprint"`
}

type blueprintsChangesResponse struct {
	Recipes []blueprintChanges `json:"recipes"`
	Errors  []itemError        `json:"errors"`
	Offset  int                `json:"offset"`
	Limit   int                `json:"limit"`
}

type diffResponse struct {
	Diff []blueprint.Change `json:"diff"`
}

type freezeEntry struct {
	Recipe blueprint.Blueprint `json:"recipe"`
}

type freezeResponse struct {
	Recipes []freezeEntry `json:"recipes"`
	Errors  []itemError   `json:"errors"`
}

type depsolveEntry struct {
	Recipe       blueprint.Blueprint `json:"recipe"`
	Dependencies []rpmmd.Dep         `json:"dependencies"`
	Modules      []rpmmd.Dep         `json:"modules"`
}

type depsolveResponse struct {
	Recipes []depsolveEntry `json:"recipes"`
	Errors  []itemError     `json:"errors"`
}

type projectsListResponse struct {
	Projects []rpmmd.Project `json:"projects"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
	Total    int             `json:"total"`
}

type projectsInfoResponse struct {
	Projects []rpmmd.ProjectInfo `json:"projects"`
}

type projectsDepsolveResponse struct {
	Projects []rpmmd.Dep `json:"projects"`
}

type modulesListResponse struct {
	Modules []rpmmd.Module `json:"modules"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
	Total   int            `json:"total"`
}

type modulesInfoResponse struct {
	Modules []rpmmd.ModuleInfo `json:"modules"`
}

type sourcesListResponse struct {
	Sources []string `json:"sources"`
}

type sourcesInfoResponse struct {
	Sources map[string]rpmmd.SourceConfig `json:"sources"`
	Errors  []itemError                   `json:"errors"`
}

type composeStartRequest struct {
	BlueprintName string `json:"blueprint_name"`
	ComposeType   string `json:"compose_type"`
	Branch        string `json:"branch"`
}

type composeStartResponse struct {
	Status  bool   `json:"status"`
	BuildID string `json:"build_id"`
}

type composeTypeEntry struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type composeTypesResponse struct {
	Types []composeTypeEntry `json:"types"`
}

type composeQueueResponse struct {
	New []queue.Record `json:"new"`
	Run []queue.Record `json:"run"`
}

type composeFinishedResponse struct {
	Finished []queue.Record `json:"finished"`
}

type composeFailedResponse struct {
	Failed []queue.Record `json:"failed"`
}

type uuidStatusEntry struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
}

type composeStatusResponse struct {
	UUIDs  []uuidStatusEntry `json:"uuids"`
	Errors []itemError       `json:"errors"`
}

type uuidActionResponse struct {
	Status bool   `json:"status"`
	UUID   string `json:"uuid"`
	Msg    string `json:"msg,omitempty"`
}

type composeDeleteResponse struct {
	UUIDs  []uuidActionResponse `json:"uuids"`
	Errors []itemError          `json:"errors"`
}

type statusAPIResponse struct {
	API           string `json:"api"`
	Build         string `json:"build"`
	DBVersion     string `json:"db_version"`
	SchemaVersion string `json:"schema_version"`
	DBSupported   bool   `json:"db_supported"`
}
