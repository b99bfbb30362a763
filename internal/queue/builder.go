package queue

import (
	"context"
	"io"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

// Builder is the external image-builder subprocess. The worker loop invokes
// it once per build and is the only caller; on cancellation the worker only
// cancels ctx, so Build must honor ctx by terminating its own work promptly
// (ExecBuilder sends its subprocess SIGTERM and, after a grace period,
// SIGKILL).
//
// imageFilename is the name (not path) of the output artifact Build wrote
// into buildDir; the worker treats the build as FINISHED only if err is nil
// and that file exists.
type Builder interface {
	Build(ctx context.Context, buildDir string, bp blueprint.Blueprint, composeType string, deps []rpmmd.Dep, kickstart string, stdout, stderr io.Writer) (imageFilename string, err error)
}

// KickstartRenderer turns a frozen blueprint and a compose type into the
// installer kickstart text stored as final-kickstart.ks.
type KickstartRenderer interface {
	Render(bp blueprint.Blueprint, composeType string) (string, error)
}
