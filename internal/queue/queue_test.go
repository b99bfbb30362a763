package queue_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/queue"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

type fakeKickstart struct{}

func (fakeKickstart) Render(bp blueprint.Blueprint, composeType string) (string, error) {
	return "# kickstart for " + bp.Name, nil
}

type fakeBuilder struct {
	imageName string
	fail      bool
}

func (b *fakeBuilder) Build(ctx context.Context, buildDir string, bp blueprint.Blueprint, composeType string, deps []rpmmd.Dep, kickstart string, stdout, stderr io.Writer) (string, error) {
	io.WriteString(stdout, "building "+bp.Name+"\n")
	if b.fail {
		return "", errFake
	}
	name := b.imageName
	if name == "" {
		name = "output.img"
	}
	if err := ioutil.WriteFile(buildDir+"/"+name, []byte("image bytes"), 0644); err != nil {
		return "", err
	}
	return name, nil
}

var errFake = &queue.QueueError{Message: "fake builder failure"}

func newTestQueue(t *testing.T, builder queue.Builder) (*queue.Queue, string) {
	queue.TestModeDelay = 10 * time.Millisecond

	root, err := ioutil.TempDir("", "queue-test-")
	require.NoError(t, err)

	shareDir, err := ioutil.TempDir("", "share-test-")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(shareDir+"/tar", 0755))

	q, err := queue.New(root, shareDir, builder, fakeKickstart{}, nil)
	require.NoError(t, err)

	return q, root
}

func TestSubmitUnknownComposeTypeFails(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})
	_, err := q.Submit("glusterfs", "master", "does-not-exist", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 0)
	require.Error(t, err)
	require.IsType(t, &queue.QueueError{}, err)
}

func TestSubmitAndTestMode2Finishes(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go q.Run(ctx)

	var info *queue.Info
	require.Eventually(t, func() bool {
		i, err := q.UUIDInfo(id)
		if err != nil {
			return false
		}
		info = i
		return info.Status == queue.StatusFinished
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, queue.StatusFinished, info.Status)
	require.NotEmpty(t, info.ImageFilename)

	filename, path, err := q.UUIDImage(id)
	require.NoError(t, err)
	require.Equal(t, info.ImageFilename, filename)
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSubmitAndTestMode1Fails(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go q.Run(ctx)

	require.Eventually(t, func() bool {
		status, err := q.UUIDStatus(id)
		return err == nil && status == queue.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelWaitingBuild(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 2)
	require.NoError(t, err)

	require.NoError(t, q.UUIDCancel(id))

	status, err := q.UUIDStatus(id)
	require.NoError(t, err)
	require.Equal(t, queue.StatusFailed, status)
}

func TestCancelTerminalBuildErrors(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 2)
	require.NoError(t, err)
	require.NoError(t, q.UUIDCancel(id))

	err = q.UUIDCancel(id)
	require.Error(t, err)
	require.IsType(t, &queue.CancelError{}, err)
}

func TestDeleteRequiresTerminalState(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 2)
	require.NoError(t, err)

	err = q.UUIDDelete(id)
	require.Error(t, err)
	require.IsType(t, &queue.CancelError{}, err)

	require.NoError(t, q.UUIDCancel(id))
	require.NoError(t, q.UUIDDelete(id))

	_, err = q.UUIDStatus(id)
	require.Error(t, err)
	require.IsType(t, &queue.NotFoundError{}, err)
}

func TestCancelRunningBuild(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})
	queue.TestModeDelay = 10 * time.Second

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go q.Run(ctx)

	require.Eventually(t, func() bool {
		status, err := q.UUIDStatus(id)
		return err == nil && status == queue.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, q.UUIDCancel(id))

	require.Eventually(t, func() bool {
		status, err := q.UUIDStatus(id)
		return err == nil && status == queue.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	failed, err := q.BuildStatus(queue.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, id, failed[0].ID)
}

func TestQueueStatusOrdersBySubmission(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})

	_, err := q.Submit("first", "master", "tar", blueprint.Blueprint{Name: "first"}, nil, "c1", 2)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = q.Submit("second", "master", "tar", blueprint.Blueprint{Name: "second"}, nil, "c2", 2)
	require.NoError(t, err)

	newRecords, runRecords, err := q.QueueStatus()
	require.NoError(t, err)
	require.Empty(t, runRecords)
	require.Len(t, newRecords, 2)
	require.Equal(t, "first", newRecords[0].BlueprintName)
	require.Equal(t, "second", newRecords[1].BlueprintName)
}

func TestUUIDTarStreamsSelectedFiles(t *testing.T) {
	q, _ := newTestQueue(t, &fakeBuilder{})

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go q.Run(ctx)

	require.Eventually(t, func() bool {
		status, err := q.UUIDStatus(id)
		return err == nil && status == queue.StatusFinished
	}, 2*time.Second, 10*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, q.UUIDTar(id, true, true, false, &buf))

	names := map[string]bool{}
	tr := tar.NewReader(&buf)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names[hdr.Name] = true
	}

	require.True(t, names["blueprint.toml"])
	require.True(t, names["compose.json"])
	require.True(t, names["deps.json"])
	require.True(t, names["STATUS"])
	require.True(t, names["image"])
}

func TestStartupReclassifiesCrashedRun(t *testing.T) {
	q, root := newTestQueue(t, &fakeBuilder{})

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 0)
	require.NoError(t, err)

	// simulate a crash mid-build: the directory sits in run/ with no worker
	require.NoError(t, os.Rename(
		root+"/queue/new/"+id.String(),
		root+"/queue/run/"+id.String(),
	))

	shareDir, err := ioutil.TempDir("", "share-test-")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(shareDir+"/tar", 0755))

	reopened, err := queue.New(root, shareDir, &fakeBuilder{}, fakeKickstart{}, nil)
	require.NoError(t, err)

	status, err := reopened.UUIDStatus(id)
	require.NoError(t, err)
	require.Equal(t, queue.StatusFailed, status)

	failed, err := reopened.BuildStatus(queue.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, id, failed[0].ID)
}

func TestUUIDLogTailCutsOnLineBoundary(t *testing.T) {
	q, root := newTestQueue(t, &fakeBuilder{})

	id, err := q.Submit("glusterfs", "master", "tar", blueprint.Blueprint{Name: "glusterfs"}, nil, "abc123", 0)
	require.NoError(t, err)

	// no log yet
	_, err = q.UUIDLog(id, 1024)
	require.Error(t, err)
	require.IsType(t, &queue.LogUnavailableError{}, err)

	logPath := root + "/queue/new/" + id.String() + "/logs/installer.log"
	content := "first line\nsecond line\nthird line\n"
	require.NoError(t, ioutil.WriteFile(logPath, []byte(content), 0644))

	full, err := q.UUIDLog(id, 4096)
	require.NoError(t, err)
	require.Equal(t, content, string(full))

	// a tail that lands mid-line is cut forward to the next boundary
	tail, err := q.UUIDLog(id, len("ond line\nthird line\n"))
	require.NoError(t, err)
	require.Equal(t, "third line\n", string(tail))
}
