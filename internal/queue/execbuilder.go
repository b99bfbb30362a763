package queue

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

// GracePeriod is how long ExecBuilder waits after SIGTERM before escalating
// to SIGKILL on a canceled build.
const GracePeriod = 30 * time.Second

// ExecBuilder is the default Builder: it shells out to an external
// image-builder binary shaped like livemedia-creator (a single command
// that consumes a kickstart and emits one artifact into its working
// directory) and pumps its stdout/stderr into the build's log files. It
// owns none of the coordination logic in worker.go; it only knows how to
// start and stop one subprocess.
type ExecBuilder struct {
	// Path is the image-builder executable.
	Path string
	// ImageNames maps a compose type to the output artifact filename,
	// relative to buildDir, that it is expected to produce; a type with no
	// entry defaults to "<compose type>.img".
	ImageNames map[string]string
}

func (b ExecBuilder) Build(ctx context.Context, buildDir string, bp blueprint.Blueprint, composeType string, deps []rpmmd.Dep, kickstart string, stdout, stderr io.Writer) (string, error) {
	ksPath := filepath.Join(buildDir, "final-kickstart.ks")
	if err := ioutil.WriteFile(ksPath, []byte(kickstart), 0644); err != nil {
		return "", err
	}

	imageName := b.ImageNames[composeType]
	if imageName == "" {
		imageName = composeType + ".img"
	}

	cmd := exec.Command(b.Path,
		"--make-iso",
		"--ks", ksPath,
		"--compose-type", composeType,
		"--resultdir", buildDir,
	)
	cmd.Dir = buildDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting image-builder: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			return "", err
		}
		return imageName, nil
	case <-ctx.Done():
		return "", terminateBuilder(cmd, waitErr)
	}
}

// terminateBuilder shuts the subprocess down cooperatively: SIGTERM, then
// SIGKILL if the process hasn't exited within GracePeriod.
func terminateBuilder(cmd *exec.Cmd, waitErr chan error) error {
	if cmd.Process == nil {
		return context.Canceled
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-waitErr:
		return context.Canceled
	case <-time.After(GracePeriod):
		_ = cmd.Process.Signal(syscall.SIGKILL)
		<-waitErr
		return context.Canceled
	}
}
