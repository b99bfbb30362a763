package queue

import (
	"archive/tar"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UUIDTar streams a tar archive of the selected subset of a build's files:
// metadata (blueprint.toml, compose.json, deps.json, final-kickstart.ks,
// STATUS),
// the output image, and/or the logs directory.
func (q *Queue) UUIDTar(id uuid.UUID, includeMetadata, includeImage, includeLogs bool, w io.Writer) error {
	q.mu.Lock()
	dir, err := q.locate(id)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	record, err := readRecord(dir)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	q.mu.Unlock()

	tw := tar.NewWriter(w)
	defer tw.Close()

	var names []string
	if includeMetadata {
		names = append(names, blueprintFile, composeFile, depsFile, kickstartFile, statusFile)
	}
	if includeImage && record.ImageFilename != "" {
		names = append(names, record.ImageFilename)
	}

	for _, name := range names {
		if err := addFileToTar(tw, dir, name); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return &QueueError{Message: err.Error()}
		}
	}

	if includeLogs {
		logDir := filepath.Join(dir, logsDir)
		entries, err := ioutil.ReadDir(logDir)
		if err != nil {
			if !os.IsNotExist(err) {
				return &QueueError{Message: err.Error()}
			}
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := addFileToTar(tw, logDir, e.Name()); err != nil {
				return &QueueError{Message: err.Error()}
			}
		}
	}

	return nil
}

func addFileToTar(tw *tar.Writer, dir, name string) error {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}
