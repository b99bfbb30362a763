package rpmmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
)

// DNFJSONBackend is the default Backend: it shells out to dnf-json, a
// small Python helper shipped alongside dnf that answers one JSON request
// per invocation over stdin/stdout. The backend process itself is outside
// this module's scope, so DNFJSONBackend only knows how to frame a request
// and parse dnf-json's reply.
type DNFJSONBackend struct {
	// Path to the dnf-json executable.
	Path string
}

type dnfRequest struct {
	Command string       `json:"command"`
	Repos   []RepoConfig `json:"repos"`
	Names   []string     `json:"names,omitempty"`
}

type dnfErrorReply struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (b DNFJSONBackend) run(command string, repos []RepoConfig, names []string) ([]byte, error) {
	req := dnfRequest{Command: command, Repos: repos, Names: names}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &CatalogError{Message: err.Error()}
	}

	cmd := exec.Command(b.Path)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var reply dnfErrorReply
		if jsonErr := json.Unmarshal(stdout.Bytes(), &reply); jsonErr == nil && reply.Reason != "" {
			return nil, &CatalogError{Message: fmt.Sprintf("%s: %s", reply.Kind, reply.Reason)}
		}
		return nil, &CatalogError{Message: fmt.Sprintf("dnf-json: %v: %s", err, stderr.String())}
	}

	return stdout.Bytes(), nil
}

func (b DNFJSONBackend) ProjectsList(repos []RepoConfig) ([]Project, error) {
	out, err := b.run("projects-list", repos, nil)
	if err != nil {
		return nil, err
	}
	var projects []Project
	if err := json.Unmarshal(out, &projects); err != nil {
		return nil, &CatalogError{Message: err.Error()}
	}
	return projects, nil
}

func (b DNFJSONBackend) ProjectsInfo(repos []RepoConfig, names []string) ([]ProjectBuilds, error) {
	out, err := b.run("projects-info", repos, names)
	if err != nil {
		return nil, err
	}
	var builds []ProjectBuilds
	if err := json.Unmarshal(out, &builds); err != nil {
		return nil, &CatalogError{Message: err.Error()}
	}
	return builds, nil
}

func (b DNFJSONBackend) ModulesList(repos []RepoConfig) ([]Module, error) {
	out, err := b.run("modules-list", repos, nil)
	if err != nil {
		return nil, err
	}
	var modules []Module
	if err := json.Unmarshal(out, &modules); err != nil {
		return nil, &CatalogError{Message: err.Error()}
	}
	return modules, nil
}

func (b DNFJSONBackend) ModulesInfo(repos []RepoConfig, names []string) ([]ModuleInfo, error) {
	out, err := b.run("modules-info", repos, names)
	if err != nil {
		return nil, err
	}
	var infos []ModuleInfo
	if err := json.Unmarshal(out, &infos); err != nil {
		return nil, &CatalogError{Message: err.Error()}
	}
	return infos, nil
}

func (b DNFJSONBackend) Depsolve(repos []RepoConfig, names []string) ([]Dep, error) {
	out, err := b.run("depsolve", repos, names)
	if err != nil {
		return nil, err
	}
	var deps []Dep
	if err := json.Unmarshal(out, &deps); err != nil {
		return nil, &CatalogError{Message: err.Error()}
	}
	return deps, nil
}
