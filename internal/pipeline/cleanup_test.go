package pipeline

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/loggo/v2"

	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
	rtest "github.com/pushback/pushback/internal/test"
)

type removeRecorder struct {
	removed    []string
	removedAll []string
	removeErr  error
	removeAll  error
}

func (r *removeRecorder) cleaner(logger logging.Logger) *Cleaner {
	return &Cleaner{
		Logger: logger,
		Remove: func(name string) error {
			r.removed = append(r.removed, name)
			return r.removeErr
		},
		RemoveAll: func(path string) error {
			r.removedAll = append(r.removedAll, path)
			return r.removeAll
		},
	}
}

func TestCleanup(t *testing.T) {
	var tests = []struct {
		name       string
		ws         Workspace
		removeErr  error
		removeAll  error
		fatal      bool
		removedAll int
		warnings   int
		errors     int
	}{
		{
			name:       "success",
			ws:         Workspace{Path: "/backup/temp"},
			removedAll: 1,
		},
		{
			name:     "preexisting",
			ws:       Workspace{Path: "/backup/temp", Preexisting: true},
			warnings: 0,
		},
		{
			name:       "permission",
			ws:         Workspace{Path: "/backup/temp"},
			removeErr:  &fs.PathError{Op: "remove", Path: "a", Err: fs.ErrPermission},
			removedAll: 1,
			warnings:   1,
		},
		{
			name:      "other-error",
			ws:        Workspace{Path: "/backup/temp"},
			removeErr: &fs.PathError{Op: "remove", Path: "a", Err: fs.ErrNotExist},
			fatal:     true,
			errors:    1,
		},
		{
			name:       "workspace-error",
			ws:         Workspace{Path: "/backup/temp"},
			removeAll:  errors.New("device busy"),
			removedAll: 1,
			errors:     1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			logger, rec := logging.NewRecorder("cleanup")
			r := &removeRecorder{removeErr: test.removeErr, removeAll: test.removeAll}
			artifact := filepath.Join(test.ws.Path, "20240309-140507-docs.tar.gz")

			err := r.cleaner(logger).Cleanup(artifact, test.ws)
			if test.fatal {
				rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
			} else {
				rtest.OK(t, err)
			}

			rtest.Equals(t, []string{artifact}, r.removed)
			rtest.Equals(t, test.removedAll, len(r.removedAll))
			rtest.Equals(t, test.warnings, rec.Count(loggo.WARNING))
			rtest.Equals(t, test.errors, rec.Count(loggo.ERROR))
		})
	}
}

func TestCleanupPermissionMessage(t *testing.T) {
	logger, rec := logging.NewRecorder("cleanup")
	r := &removeRecorder{removeErr: &fs.PathError{Op: "remove", Path: "a", Err: fs.ErrPermission}}

	rtest.OK(t, r.cleaner(logger).Cleanup("/backup/temp/a", Workspace{Path: "/backup/temp"}))

	msgs := rec.Messages(loggo.WARNING)
	rtest.Equals(t, 1, len(msgs))
	rtest.Assert(t, strings.HasPrefix(msgs[0], "Error in attempt to delete file at /backup/temp/a"),
		"unexpected warning %q", msgs[0])

	for _, msg := range rec.Messages(loggo.INFO) {
		rtest.Assert(t, !strings.HasPrefix(msg, "Success in deleting file"), "success logged after failure: %q", msg)
	}
}

func TestPrepareWorkspace(t *testing.T) {
	base := rtest.TempDir(t)
	dir := filepath.Join(base, "temp")
	logger, rec := logging.NewRecorder("workspace")

	ws, err := PrepareWorkspace(dir, logger)
	rtest.OK(t, err)
	rtest.Equals(t, Workspace{Path: dir}, ws)
	rtest.Equals(t, []string{
		"Attempting to create a temporary directory " + dir,
		"Created a temporary directory " + dir,
	}, rec.Messages(loggo.INFO))

	ws, err = PrepareWorkspace(dir, nil)
	rtest.OK(t, err)
	rtest.Equals(t, Workspace{Path: dir, Preexisting: true}, ws)

	rtest.WriteFiles(t, base, map[string]string{"file": "x"})
	_, err = PrepareWorkspace(filepath.Join(base, "file"), nil)
	rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
}
