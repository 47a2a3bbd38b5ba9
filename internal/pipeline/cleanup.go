package pipeline

import (
	"os"

	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
)

// Cleaner removes the artifact and, if this run created it, the workspace.
type Cleaner struct {
	Logger logging.Logger

	// Remove and RemoveAll default to os.Remove and os.RemoveAll.
	Remove    func(name string) error
	RemoveAll func(path string) error
}

func (c *Cleaner) log() logging.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}

func (c *Cleaner) remove(name string) error {
	if c.Remove == nil {
		return os.Remove(name)
	}
	return c.Remove(name)
}

func (c *Cleaner) removeAll(path string) error {
	if c.RemoveAll == nil {
		return os.RemoveAll(path)
	}
	return c.RemoveAll(path)
}

// Cleanup removes artifact and then ws unless it was preexisting. A
// permission error on the artifact is only a warning. Any other error
// removing the artifact is fatal and leaves the workspace alone. Failing to
// remove the workspace is logged and otherwise ignored.
func (c *Cleaner) Cleanup(artifact string, ws Workspace) error {
	logger := c.log()

	logger.Infof("Attempting to delete file at %s", artifact)
	err := c.remove(artifact)
	switch {
	case err == nil:
		logger.Infof("Success in deleting file at %s", artifact)
	case errors.IsPermission(err):
		logger.Warningf("Error in attempt to delete file at %s: %v", artifact, err)
	default:
		logger.Errorf("Could not delete temporary file and directory created, please manually delete at %s: %v", artifact, err)
		return errors.Fatalf("unable to delete %s: %v", artifact, err)
	}

	c.removeWorkspace(ws)
	return nil
}

// removeWorkspace deletes ws unless it was preexisting. Errors are logged.
func (c *Cleaner) removeWorkspace(ws Workspace) {
	if ws.Preexisting || ws.Path == "" {
		return
	}

	logger := c.log()
	logger.Infof("Attempting to delete directory %s", ws.Path)
	if err := c.removeAll(ws.Path); err != nil {
		logger.Errorf("Could not delete temporary directory created, please manually delete at %s: %v", ws.Path, err)
		return
	}
	logger.Infof("Success in deleting directory at %s", ws.Path)
}
