package queue

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Watch runs a directory-watching monitor over queue/new/, noticing build
// directories created by something other than Submit (an externally
// injected build, or one staged by a separate process) and waking the
// worker once the directory looks complete. It runs until ctx is canceled.
func (q *Queue) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &QueueError{Message: err.Error()}
	}
	defer watcher.Close()

	if err := watcher.Add(q.newDir); err != nil {
		return &QueueError{Message: err.Error()}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			q.noticeExternalBuild(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if q.logger != nil {
				q.logger.Printf("queue: watcher error: %v", err)
			}
		}
	}
}

// noticeExternalBuild enqueues path's basename if it looks like a complete
// build directory. It does not check whether the id is already queued; the
// worker skips an id whose directory has already left new/.
func (q *Queue) noticeExternalBuild(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	id, err := uuid.Parse(filepath.Base(path))
	if err != nil {
		return
	}

	bpPath, composePath, depsPath, ksPath := buildDirFiles(path)
	for _, required := range []string{bpPath, composePath, depsPath, ksPath} {
		if _, err := os.Stat(required); err != nil {
			return
		}
	}

	if _, err := readStatus(path); err != nil {
		if werr := writeStatus(path, StatusWaiting); werr != nil {
			return
		}
	}

	select {
	case q.pending <- id:
	default:
	}
}
