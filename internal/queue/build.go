package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

const (
	blueprintFile  = "blueprint.toml"
	composeFile    = "compose.json"
	depsFile       = "deps.json"
	kickstartFile  = "final-kickstart.ks"
	statusFile     = "STATUS"
	failReasonFile = "FAIL_REASON"
	logsDir        = "logs"
	stdoutLog      = "stdout.log"
	stderrLog      = "stderr.log"
	installerLog   = "installer.log"
)

// Record is compose.json: everything about a build except the frozen
// blueprint and dependency manifest, which are kept in their own files so
// that blueprint.toml and deps.json stay in their native shapes on disk.
type Record struct {
	ID            uuid.UUID `json:"id"`
	BlueprintName string    `json:"blueprint_name"`
	Branch        string    `json:"branch"`
	ComposeType   string    `json:"compose_type"`
	CommitHash    string    `json:"commit_hash"`
	TestMode      int       `json:"test_mode,omitempty"`
	Submitted     time.Time `json:"submitted"`
	Started       time.Time `json:"started,omitempty"`
	Finished      time.Time `json:"finished,omitempty"`
	Status        Status    `json:"queue_status"`
	ImageFilename string    `json:"image_filename,omitempty"`
}

// Info is the full record returned by uuid_info: the Record plus the
// frozen blueprint and resolved dependencies that were snapshotted at
// submission time.
type Info struct {
	Record
	Blueprint blueprint.Blueprint `json:"blueprint"`
	Deps      []rpmmd.Dep         `json:"deps"`
}
