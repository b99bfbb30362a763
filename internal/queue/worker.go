package queue

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

const placeholderImageName = "image"

// TestModeDelay is how long a test-mode build stays RUNNING before reaching
// its forced terminal state, so integration tests can observe the RUNNING
// state and exercise cancellation. Unit tests shorten it.
var TestModeDelay = 5 * time.Second

// Run drives the worker loop: pick the oldest waiting build, run it to
// completion, and repeat until ctx is canceled. Only one Run loop may be
// active per Queue.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.pending:
			q.runOne(ctx, id)
		}
	}
}

// runOne picks up id from new/, runs it (or fakes running it, under a test
// mode), and files it under results/. It is the only place that writes to
// run/, so it doesn't need q.mu held across the actual build.
func (q *Queue) runOne(ctx context.Context, id uuid.UUID) {
	runDir := filepath.Join(q.runDir, id.String())

	q.mu.Lock()
	newDir := filepath.Join(q.newDir, id.String())
	if _, err := os.Stat(newDir); err != nil {
		// Canceled or otherwise removed before the worker got to it.
		q.mu.Unlock()
		return
	}

	record, err := readRecord(newDir)
	if err != nil {
		q.mu.Unlock()
		if q.logger != nil {
			q.logger.Printf("queue: dropping unreadable build %s: %v", id, err)
		}
		return
	}

	record.Started = time.Now().UTC()
	record.Status = StatusRunning
	if err := writeRecord(newDir, record); err != nil {
		q.mu.Unlock()
		return
	}
	if err := writeStatus(newDir, StatusRunning); err != nil {
		q.mu.Unlock()
		return
	}
	if err := os.Rename(newDir, runDir); err != nil {
		q.mu.Unlock()
		if q.logger != nil {
			q.logger.Printf("queue: could not start build %s: %v", id, err)
		}
		return
	}

	buildCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	q.running = &runningBuild{id: id, cancel: cancel, done: done}
	q.mu.Unlock()

	defer close(done)
	defer cancel()

	status, imageFilename, failReason := q.runBuild(buildCtx, runDir, record)

	q.mu.Lock()
	q.running = nil
	record.Status = status
	record.Finished = time.Now().UTC()
	record.ImageFilename = imageFilename
	if failReason != "" {
		_ = writeFailReason(runDir, failReason)
	}
	_ = writeRecord(runDir, record)
	_ = writeStatus(runDir, status)
	resultsDir := filepath.Join(q.resultsDir, id.String())
	if err := os.Rename(runDir, resultsDir); err != nil && q.logger != nil {
		q.logger.Printf("queue: could not file finished build %s: %v", id, err)
	}
	q.mu.Unlock()
}

// runBuild performs (or, for test modes, simulates) one build and reports
// its terminal status, output image filename (if any), and a human-readable
// failure reason (if any).
func (q *Queue) runBuild(ctx context.Context, dir string, record Record) (status Status, imageFilename, failReason string) {
	switch record.TestMode {
	case 1:
		select {
		case <-ctx.Done():
			return StatusFailed, "", "canceled"
		case <-time.After(TestModeDelay):
		}
		return StatusFailed, "", "test mode 1: forced failure"
	case 2:
		select {
		case <-ctx.Done():
			return StatusFailed, "", "canceled"
		case <-time.After(TestModeDelay):
		}
		path := filepath.Join(dir, placeholderImageName)
		if err := ioutil.WriteFile(path, []byte("test placeholder image"), 0644); err != nil {
			return StatusFailed, "", err.Error()
		}
		return StatusFinished, placeholderImageName, ""
	}

	bpPath, _, depsPath, ksPath := buildDirFiles(dir)
	bp, err := loadFrozenBlueprint(bpPath)
	if err != nil {
		return StatusFailed, "", err.Error()
	}
	deps, err := loadDeps(depsPath)
	if err != nil {
		return StatusFailed, "", err.Error()
	}
	kickstart, err := ioutil.ReadFile(ksPath)
	if err != nil {
		return StatusFailed, "", err.Error()
	}

	stdout, stderr, closeLogs, err := openBuildLogs(dir)
	if err != nil {
		return StatusFailed, "", err.Error()
	}
	defer closeLogs()

	imageFilename, err = q.builder.Build(ctx, dir, bp, record.ComposeType, deps, string(kickstart), stdout, stderr)
	if err != nil {
		return StatusFailed, "", err.Error()
	}

	if imageFilename == "" {
		return StatusFailed, "", "builder reported success but no output artifact"
	}
	if _, err := os.Stat(filepath.Join(dir, imageFilename)); err != nil {
		return StatusFailed, "", "declared output artifact is missing: " + imageFilename
	}

	return StatusFinished, imageFilename, ""
}

func loadFrozenBlueprint(path string) (blueprint.Blueprint, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return blueprint.Blueprint{}, err
	}
	return blueprint.ParseTOML(data)
}

func loadDeps(path string) ([]rpmmd.Dep, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var deps []rpmmd.Dep
	if err := json.Unmarshal(data, &deps); err != nil {
		return nil, err
	}
	return deps, nil
}

func openBuildLogs(dir string) (stdout, stderr io.Writer, closeFn func(), err error) {
	outFile, err := os.Create(filepath.Join(dir, logsDir, stdoutLog))
	if err != nil {
		return nil, nil, nil, err
	}
	errFile, err := os.Create(filepath.Join(dir, logsDir, stderrLog))
	if err != nil {
		outFile.Close()
		return nil, nil, nil, err
	}
	return outFile, errFile, func() {
		outFile.Close()
		errFile.Close()
	}, nil
}
