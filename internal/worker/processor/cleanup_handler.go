package processor

import (
	"os"
	"path/filepath"

	"montage/internal/pkg/errors"
)

// Workspace is a job's private scratch directory.
type Workspace struct {
	Dir string
}

// AcquireWorkspace creates a fresh directory under root for jobID. Two jobs
// never share a directory, even with equal ids. The directory is always
// absolute: stages run ffmpeg with the workspace as working directory and
// concat lists resolve entries against their own location.
func AcquireWorkspace(root, jobID string) (*Workspace, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "montage")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Filesystem("workspace.acquire", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Filesystem("workspace.acquire", err)
	}
	dir, err := os.MkdirTemp(root, "job-"+SanitizeFilename(jobID)+"-")
	if err != nil {
		return nil, errors.Filesystem("workspace.acquire", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Release removes the directory and everything in it.
func (w *Workspace) Release() error {
	if err := os.RemoveAll(w.Dir); err != nil {
		return errors.Filesystem("workspace.release", err)
	}
	return nil
}
