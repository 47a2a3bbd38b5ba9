package pipeline

import (
	"os"
	"path/filepath"

	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
)

// DefaultWorkspaceName is the scratch directory created beside the executable.
const DefaultWorkspaceName = "temp"

// Workspace is the scratch directory artifacts are written to. Preexisting
// directories survive cleanup.
type Workspace struct {
	Path        string
	Preexisting bool
}

// DefaultWorkspace returns the temp directory beside the running executable.
func DefaultWorkspace() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "Executable")
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", errors.Wrap(err, "EvalSymlinks")
	}

	return filepath.Join(filepath.Dir(exe), DefaultWorkspaceName), nil
}

// PrepareWorkspace creates dir unless it already exists.
func PrepareWorkspace(dir string, logger logging.Logger) (Workspace, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	ws := Workspace{Path: dir}
	logger.Infof("Attempting to create a temporary directory %s", dir)

	fi, err := os.Stat(dir)
	switch {
	case err == nil && fi.IsDir():
		ws.Preexisting = true
		logger.Infof("Did not create a temporary directory %s, it already exists", dir)
		return ws, nil
	case err == nil:
		return ws, errors.Fatalf("%s exists and is not a directory", dir)
	case !errors.IsNotExist(err):
		return ws, errors.Wrap(err, "Stat")
	}

	if err := os.Mkdir(dir, 0700); err != nil {
		return ws, errors.Fatalf("unable to create temporary directory %s: %v", dir, err)
	}

	logger.Infof("Created a temporary directory %s", dir)
	return ws, nil
}
