package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kean0048/lorax-for-legion/internal/api"
	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/blueprintstore"
	"github.com/kean0048/lorax-for-legion/internal/queue"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

type fakeBackend struct{}

func (fakeBackend) ProjectsList(repos []rpmmd.RepoConfig) ([]rpmmd.Project, error) {
	return []rpmmd.Project{
		{Name: "glusterfs", Summary: "a distributed filesystem"},
		{Name: "bash", Summary: "a shell"},
	}, nil
}

func (fakeBackend) ProjectsInfo(repos []rpmmd.RepoConfig, names []string) ([]rpmmd.ProjectBuilds, error) {
	out := make([]rpmmd.ProjectBuilds, 0, len(names))
	for _, n := range names {
		out = append(out, rpmmd.ProjectBuilds{
			Project: rpmmd.Project{Name: n},
			Builds: []rpmmd.Build{
				{Version: "1.0", Release: "1.fc30", Arch: "x86_64", BuildTime: 1561636800},
			},
		})
	}
	return out, nil
}

func (fakeBackend) ModulesList(repos []rpmmd.RepoConfig) ([]rpmmd.Module, error) {
	return []rpmmd.Module{
		{Name: "glusterfs", GroupType: "rpm"},
		{Name: "httpd", GroupType: "rpm"},
	}, nil
}

func (fakeBackend) ModulesInfo(repos []rpmmd.RepoConfig, names []string) ([]rpmmd.ModuleInfo, error) {
	out := make([]rpmmd.ModuleInfo, 0, len(names))
	for _, n := range names {
		out = append(out, rpmmd.ModuleInfo{Module: rpmmd.Module{Name: n, GroupType: "rpm"}})
	}
	return out, nil
}

func (fakeBackend) Depsolve(repos []rpmmd.RepoConfig, names []string) ([]rpmmd.Dep, error) {
	deps := make([]rpmmd.Dep, 0, len(names)+1)
	for _, n := range names {
		deps = append(deps, rpmmd.Dep{Name: n, Version: "3.8", Release: "1.fc30", Arch: "x86_64"})
	}
	deps = append(deps, rpmmd.Dep{Name: "glibc", Version: "2.29", Release: "9.fc30", Arch: "x86_64"})
	return deps, nil
}

type noopBuilder struct{}

func (noopBuilder) Build(ctx context.Context, buildDir string, bp blueprint.Blueprint, composeType string, deps []rpmmd.Dep, kickstart string, stdout, stderr io.Writer) (string, error) {
	return "", &queue.QueueError{Message: "real builds are disabled in tests"}
}

type testServer struct {
	server *api.Server
}

func newTestServer(t *testing.T) *testServer {
	queue.TestModeDelay = 20 * time.Millisecond

	stateDir, err := ioutil.TempDir("", "api-test-state-")
	require.NoError(t, err)
	shareDir, err := ioutil.TempDir("", "api-test-share-")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(shareDir+"/tar", 0755))
	require.NoError(t, os.Mkdir(shareDir+"/qcow2", 0755))
	t.Cleanup(func() {
		os.RemoveAll(stateDir)
		os.RemoveAll(shareDir)
	})

	store := blueprintstore.New(stateDir + "/blueprints")
	catalog := rpmmd.New(fakeBackend{}, []rpmmd.RepoConfig{
		{Id: "fedora", BaseURL: "https://example.test/fedora/os/"},
	})

	q, err := queue.New(stateDir, shareDir, noopBuilder{}, queue.DefaultKickstartRenderer{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	t.Cleanup(cancel)

	return &testServer{
		server: api.NewServer(nil, store, catalog, q, "test"),
	}
}

func (ts *testServer) request(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp := httptest.NewRecorder()
	ts.server.ServeHTTP(resp, req)
	return resp
}

func (ts *testServer) getJSON(t *testing.T, path string, v interface{}) *httptest.ResponseRecorder {
	resp := ts.request(t, "GET", path, "", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v))
	return resp
}

const glusterfsTOML = `name = "glusterfs"
description = "An example GlusterFS server"
version = "0.2.0"

[[modules]]
name = "glusterfs"
version = "3.*"

[[packages]]
name = "tar"
version = "*"
`

func (ts *testServer) commitGlusterfs(t *testing.T) {
	resp := ts.request(t, "POST", "/api/v0/blueprints/new", "text/x-toml", glusterfsTOML)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var status struct {
		API   string `json:"api"`
		Build string `json:"build"`
	}
	resp := ts.getJSON(t, "/api/v0/status", &status)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "0", status.API)
	require.Equal(t, "test", status.Build)
}

func TestBlueprintsNewAndInfo(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)

	var info struct {
		Changes []struct {
			Name    string `json:"name"`
			Changed bool   `json:"changed"`
		} `json:"changes"`
		Recipes []blueprint.Blueprint `json:"recipes"`
		Errors  []interface{}         `json:"errors"`
	}
	resp := ts.getJSON(t, "/api/v0/blueprints/info/glusterfs", &info)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, info.Errors)
	require.Len(t, info.Recipes, 1)
	require.Equal(t, "glusterfs", info.Recipes[0].Name)
	require.Equal(t, "0.2.0", info.Recipes[0].Version)
	require.Len(t, info.Changes, 1)
	require.False(t, info.Changes[0].Changed)
}

func TestBlueprintsInfoUnknownCollectsError(t *testing.T) {
	ts := newTestServer(t)

	var info struct {
		Recipes []blueprint.Blueprint `json:"recipes"`
		Errors  []struct {
			Name string `json:"recipe"`
			Msg  string `json:"msg"`
		} `json:"errors"`
	}
	resp := ts.getJSON(t, "/api/v0/blueprints/info/no-such-blueprint", &info)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, info.Recipes)
	require.Len(t, info.Errors, 1)
	require.Equal(t, "no-such-blueprint", info.Errors[0].Name)
}

func TestWorkspaceDrift(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)

	draft := `{"name": "glusterfs", "description": "drifted", "version": "0.2.0",
		"modules": [{"name": "glusterfs", "version": "3.*"}],
		"packages": [{"name": "tar", "version": "*"}]}`
	resp := ts.request(t, "POST", "/api/v0/blueprints/workspace", "application/json", draft)
	require.Equal(t, http.StatusOK, resp.Code)

	var info struct {
		Changes []struct {
			Changed bool `json:"changed"`
		} `json:"changes"`
		Recipes []blueprint.Blueprint `json:"recipes"`
	}
	ts.getJSON(t, "/api/v0/blueprints/info/glusterfs", &info)
	require.Len(t, info.Recipes, 1)
	require.Equal(t, "drifted", info.Recipes[0].Description)
	require.True(t, info.Changes[0].Changed)

	// dropping the draft restores the committed view
	resp = ts.request(t, "DELETE", "/api/v0/blueprints/workspace/glusterfs", "", "")
	require.Equal(t, http.StatusOK, resp.Code)

	ts.getJSON(t, "/api/v0/blueprints/info/glusterfs", &info)
	require.Equal(t, "An example GlusterFS server", info.Recipes[0].Description)
	require.False(t, info.Changes[0].Changed)
}

func TestBlueprintsDiffAcrossCommits(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "POST", "/api/v0/blueprints/new", "text/x-toml", "name = \"glusterfs\"\nversion = \"0.0.1\"\n")
	require.Equal(t, http.StatusOK, resp.Code)
	resp = ts.request(t, "POST", "/api/v0/blueprints/new", "text/x-toml", "name = \"glusterfs\"\nversion = \"0.2.1\"\n")
	require.Equal(t, http.StatusOK, resp.Code)

	var changes struct {
		Recipes []struct {
			Changes []struct {
				Commit string `json:"commit"`
			} `json:"changes"`
		} `json:"recipes"`
	}
	ts.getJSON(t, "/api/v0/blueprints/changes/glusterfs", &changes)
	require.Len(t, changes.Recipes, 1)
	require.Len(t, changes.Recipes[0].Changes, 2)

	newest := changes.Recipes[0].Changes[0].Commit
	oldest := changes.Recipes[0].Changes[1].Commit

	var diff struct {
		Diff []blueprint.Change `json:"diff"`
	}
	ts.getJSON(t, "/api/v0/blueprints/diff/glusterfs/"+oldest+"/"+newest, &diff)
	require.Equal(t, []blueprint.Change{
		{Old: map[string]interface{}{"Version": "0.0.1"}, New: map[string]interface{}{"Version": "0.2.1"}},
	}, diff.Diff)
}

func TestBlueprintsTagIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)

	var status struct {
		Status bool `json:"status"`
	}
	resp := ts.request(t, "POST", "/api/v0/blueprints/tag/glusterfs", "", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &status))
	require.True(t, status.Status)

	resp = ts.request(t, "POST", "/api/v0/blueprints/tag/glusterfs", "", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &status))
	require.False(t, status.Status)
}

func TestBlueprintsUndo(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "POST", "/api/v0/blueprints/new", "text/x-toml", "name = \"glusterfs\"\ndescription = \"first\"\n")
	require.Equal(t, http.StatusOK, resp.Code)
	resp = ts.request(t, "POST", "/api/v0/blueprints/new", "text/x-toml", "name = \"glusterfs\"\ndescription = \"second\"\n")
	require.Equal(t, http.StatusOK, resp.Code)

	var changes struct {
		Recipes []struct {
			Changes []struct {
				Commit string `json:"commit"`
			} `json:"changes"`
		} `json:"recipes"`
	}
	ts.getJSON(t, "/api/v0/blueprints/changes/glusterfs", &changes)
	first := changes.Recipes[0].Changes[1].Commit

	resp = ts.request(t, "POST", "/api/v0/blueprints/undo/glusterfs/"+first, "", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var info struct {
		Recipes []blueprint.Blueprint `json:"recipes"`
	}
	ts.getJSON(t, "/api/v0/blueprints/info/glusterfs", &info)
	require.Equal(t, "first", info.Recipes[0].Description)
}

func TestBlueprintsFreezeAndDepsolve(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)

	var freeze struct {
		Recipes []struct {
			Recipe blueprint.Blueprint `json:"recipe"`
		} `json:"recipes"`
		Errors []interface{} `json:"errors"`
	}
	ts.getJSON(t, "/api/v0/blueprints/freeze/glusterfs", &freeze)
	require.Empty(t, freeze.Errors)
	require.Len(t, freeze.Recipes, 1)
	require.Equal(t, "glusterfs-3.8-1.fc30.x86_64", freeze.Recipes[0].Recipe.Modules[0].Version)
	require.Equal(t, "tar-3.8-1.fc30.x86_64", freeze.Recipes[0].Recipe.Packages[0].Version)

	var depsolve struct {
		Recipes []struct {
			Recipe       blueprint.Blueprint `json:"recipe"`
			Dependencies []rpmmd.Dep         `json:"dependencies"`
		} `json:"recipes"`
	}
	ts.getJSON(t, "/api/v0/blueprints/depsolve/glusterfs", &depsolve)
	require.Len(t, depsolve.Recipes, 1)
	require.Len(t, depsolve.Recipes[0].Dependencies, 3)
}

func TestProjectsAndModules(t *testing.T) {
	ts := newTestServer(t)

	var projects struct {
		Projects []rpmmd.Project `json:"projects"`
		Total    int             `json:"total"`
	}
	ts.getJSON(t, "/api/v0/projects/list", &projects)
	require.Equal(t, 2, projects.Total)
	require.Equal(t, "bash", projects.Projects[0].Name)

	var modules struct {
		Modules []rpmmd.Module `json:"modules"`
	}
	ts.getJSON(t, "/api/v0/modules/list/gluster*", &modules)
	require.Len(t, modules.Modules, 1)
	require.Equal(t, "glusterfs", modules.Modules[0].Name)
}

func TestProjectsSources(t *testing.T) {
	ts := newTestServer(t)

	var list struct {
		Sources []string `json:"sources"`
	}
	ts.getJSON(t, "/api/v0/projects/source/list", &list)
	require.Equal(t, []string{"fedora"}, list.Sources)

	body := `{"name": "custom", "type": "yum-baseurl", "url": "https://example.test/custom/", "check_gpg": true, "check_ssl": true, "system": false}`
	resp := ts.request(t, "POST", "/api/v0/projects/source/new", "application/json", body)
	require.Equal(t, http.StatusOK, resp.Code)

	var info struct {
		Sources map[string]rpmmd.SourceConfig `json:"sources"`
		Errors  []interface{}                 `json:"errors"`
	}
	ts.getJSON(t, "/api/v0/projects/source/info/custom,missing", &info)
	require.Len(t, info.Sources, 1)
	require.Equal(t, "yum-baseurl", info.Sources["custom"].Type)
	require.Len(t, info.Errors, 1)

	// system sources survive a delete attempt
	resp = ts.request(t, "DELETE", "/api/v0/projects/source/delete/fedora", "", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.request(t, "DELETE", "/api/v0/projects/source/delete/custom", "", "")
	require.Equal(t, http.StatusOK, resp.Code)

	ts.getJSON(t, "/api/v0/projects/source/list", &list)
	require.Equal(t, []string{"fedora"}, list.Sources)
}

func startTestCompose(t *testing.T, ts *testServer, testMode string) string {
	body := `{"blueprint_name": "glusterfs", "compose_type": "tar", "branch": "master"}`
	resp := ts.request(t, "POST", "/api/v0/compose?test="+testMode, "application/json", body)
	require.Equal(t, http.StatusOK, resp.Code)

	var started struct {
		Status  bool   `json:"status"`
		BuildID string `json:"build_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &started))
	require.True(t, started.Status)
	require.NotEmpty(t, started.BuildID)
	return started.BuildID
}

func waitForStatus(t *testing.T, ts *testServer, id, want string) {
	require.Eventually(t, func() bool {
		var status struct {
			UUIDs []struct {
				Status string `json:"status"`
			} `json:"uuids"`
		}
		ts.getJSON(t, "/api/v0/compose/status/"+id, &status)
		return len(status.UUIDs) == 1 && status.UUIDs[0].Status == want
	}, 10*time.Second, 10*time.Millisecond)
}

func TestComposeHappyPath(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)

	id := startTestCompose(t, ts, "2")
	waitForStatus(t, ts, id, "FINISHED")

	var info struct {
		ID          string              `json:"id"`
		ComposeType string              `json:"compose_type"`
		CommitHash  string              `json:"commit_hash"`
		Status      string              `json:"queue_status"`
		Blueprint   blueprint.Blueprint `json:"blueprint"`
		Deps        []rpmmd.Dep         `json:"deps"`
	}
	ts.getJSON(t, "/api/v0/compose/info/"+id, &info)
	require.Equal(t, id, info.ID)
	require.Equal(t, "tar", info.ComposeType)
	require.NotEmpty(t, info.CommitHash)
	require.Equal(t, "FINISHED", info.Status)
	require.Equal(t, "glusterfs", info.Blueprint.Name)
	require.NotEmpty(t, info.Deps)

	image := ts.request(t, "GET", "/api/v0/compose/image/"+id, "", "")
	require.Equal(t, http.StatusOK, image.Code)
	require.NotEmpty(t, image.Body.Bytes())

	var finished struct {
		Finished []queue.Record `json:"finished"`
	}
	ts.getJSON(t, "/api/v0/compose/finished", &finished)
	require.Len(t, finished.Finished, 1)
}

func TestComposeCancel(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)
	queue.TestModeDelay = 10 * time.Second

	id := startTestCompose(t, ts, "2")
	waitForStatus(t, ts, id, "RUNNING")

	resp := ts.request(t, "DELETE", "/api/v0/compose/cancel/"+id, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var canceled struct {
		Status bool `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &canceled))
	require.True(t, canceled.Status)

	waitForStatus(t, ts, id, "FAILED")

	var failed struct {
		Failed []queue.Record `json:"failed"`
	}
	ts.getJSON(t, "/api/v0/compose/failed", &failed)
	require.Len(t, failed.Failed, 1)
	require.Equal(t, id, failed.Failed[0].ID.String())
}

func TestComposeTestMode1Fails(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)

	id := startTestCompose(t, ts, "1")
	waitForStatus(t, ts, id, "FAILED")
}

func TestComposeUnknownTypeFails(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)

	body := `{"blueprint_name": "glusterfs", "compose_type": "live-iso", "branch": "master"}`
	resp := ts.request(t, "POST", "/api/v0/compose", "application/json", body)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var envelope struct {
		Status bool `json:"status"`
		Error  struct {
			Msg string `json:"msg"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.False(t, envelope.Status)
	require.Contains(t, envelope.Error.Msg, "live-iso")
}

func TestComposeDeleteRemovesResult(t *testing.T) {
	ts := newTestServer(t)
	ts.commitGlusterfs(t)

	id := startTestCompose(t, ts, "2")
	waitForStatus(t, ts, id, "FINISHED")

	resp := ts.request(t, "DELETE", "/api/v0/compose/delete/"+id, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var deleted struct {
		UUIDs []struct {
			Status bool `json:"status"`
		} `json:"uuids"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &deleted))
	require.Len(t, deleted.UUIDs, 1)
	require.True(t, deleted.UUIDs[0].Status)

	var status struct {
		Errors []struct {
			Name string `json:"recipe"`
		} `json:"errors"`
	}
	ts.getJSON(t, "/api/v0/compose/status/"+id, &status)
	require.Len(t, status.Errors, 1)
}

func TestComposeTypes(t *testing.T) {
	ts := newTestServer(t)

	var types struct {
		Types []struct {
			Name    string `json:"name"`
			Enabled bool   `json:"enabled"`
		} `json:"types"`
	}
	ts.getJSON(t, "/api/v0/compose/types", &types)
	require.Len(t, types.Types, 2)
	require.Equal(t, "qcow2", types.Types[0].Name)
	require.Equal(t, "tar", types.Types[1].Name)
}
