package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/juju/clock/testclock"
	"github.com/juju/loggo/v2"

	"github.com/pushback/pushback/internal/archiver"
	"github.com/pushback/pushback/internal/backend/local"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
	rtest "github.com/pushback/pushback/internal/test"
)

var testTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

var testFiles = map[string]string{
	"docs/a.txt":     "hello",
	"docs/sub/b.txt": "world",
}

type fakeUploader struct {
	calls []string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, filename string) (UploadResult, error) {
	f.calls = append(f.calls, filename)
	if f.err != nil {
		return UploadResult{}, f.err
	}
	return UploadResult{RemoteID: "remote-1", Name: filepath.Base(filename)}, nil
}

type testEnv struct {
	source string
	ws     Workspace
	rec    *logging.Recorder
	p      *Pipeline
}

// newTestEnv creates the source tree and a fresh workspace below a
// temporary directory.
func newTestEnv(t *testing.T, up Uploader) *testEnv {
	base := rtest.TempDir(t)
	rtest.WriteFiles(t, base, testFiles)

	logger, rec := logging.NewRecorder("pipeline")
	ws, err := PrepareWorkspace(filepath.Join(base, "temp"), logger)
	rtest.OK(t, err)

	return &testEnv{
		source: filepath.Join(base, "docs"),
		ws:     ws,
		rec:    rec,
		p: &Pipeline{
			Archiver: &archiver.Archiver{Clock: testclock.NewClock(testTime), Logger: logger},
			Uploader: up,
			Cleaner:  &Cleaner{Logger: logger},
			Logger:   logger,
		},
	}
}

func exists(t testing.TB, name string) bool {
	t.Helper()
	_, err := os.Lstat(name)
	if errors.IsNotExist(err) {
		return false
	}
	rtest.OK(t, err)
	return true
}

func TestRunLocalRemote(t *testing.T) {
	remote := rtest.TempDir(t)

	registry := location.NewRegistry()
	registry.Register(local.NewFactory())
	loc, err := location.Parse(registry, "local:"+remote)
	rtest.OK(t, err)

	env := newTestEnv(t, nil)
	env.p.Uploader = &BackendUploader{Registry: registry, Location: loc, Logger: env.p.Logger}

	rep, err := env.p.Run(context.TODO(), env.source, env.ws)
	rtest.OK(t, err)
	rtest.Equals(t, CleanedUp, rep.State)
	rtest.Assert(t, rep.Success(), "run did not succeed: %+v", rep)
	rtest.Equals(t, "20240309-140507-docs.tar.gz", rep.Upload.Name)

	rtest.Equals(t, []string{"20240309-140507-docs.tar.gz"}, rtest.DirEntries(t, remote))
	rtest.Assert(t, !exists(t, env.ws.Path), "workspace %v was not removed", env.ws.Path)

	// the uploaded artifact restores the source
	restored := rtest.TempDir(t)
	a := &archiver.Archiver{}
	rtest.OK(t, a.Extract(context.TODO(), filepath.Join(remote, rep.Upload.Name), restored))
	if diff := cmp.Diff(testFiles, rtest.ReadFiles(t, restored)); diff != "" {
		t.Errorf("restored files differ (-want +got):\n%s", diff)
	}

	rtest.Equals(t, 0, env.rec.Count(loggo.ERROR))
	rtest.Equals(t, 0, env.rec.Count(loggo.WARNING))
}

func TestRunPreexistingWorkspace(t *testing.T) {
	base := rtest.TempDir(t)
	rtest.WriteFiles(t, base, testFiles)
	rtest.WriteFiles(t, base, map[string]string{"temp/keep.txt": "keep"})

	ws, err := PrepareWorkspace(filepath.Join(base, "temp"), nil)
	rtest.OK(t, err)
	rtest.Assert(t, ws.Preexisting, "workspace not detected as preexisting")

	up := &fakeUploader{}
	p := &Pipeline{
		Archiver: &archiver.Archiver{Clock: testclock.NewClock(testTime)},
		Uploader: up,
	}

	rep, err := p.Run(context.TODO(), filepath.Join(base, "docs"), ws)
	rtest.OK(t, err)
	rtest.Equals(t, CleanedUp, rep.State)
	rtest.Equals(t, []string{filepath.Join(ws.Path, "20240309-140507-docs.tar.gz")}, up.calls)
	rtest.Equals(t, []string{"keep.txt"}, rtest.DirEntries(t, ws.Path))
}

func TestRunUploadFailureDeletesArtifact(t *testing.T) {
	up := &fakeUploader{err: errors.New("quota exceeded")}
	env := newTestEnv(t, up)

	rep, err := env.p.Run(context.TODO(), env.source, env.ws)
	rtest.OK(t, err)
	rtest.Equals(t, CleanedUp, rep.State)
	rtest.Assert(t, !rep.Success(), "failed upload reported as success")
	rtest.Assert(t, rep.UploadErr != nil, "upload error not recorded")
	rtest.Equals(t, "", rep.Upload.RemoteID)
	rtest.Assert(t, !exists(t, env.ws.Path), "workspace %v was not removed", env.ws.Path)
}

func TestRunKeepArtifactOnUploadFailure(t *testing.T) {
	up := &fakeUploader{err: errors.New("quota exceeded")}
	env := newTestEnv(t, up)
	env.p.Policy.KeepArtifactOnUploadFailure = true

	rep, err := env.p.Run(context.TODO(), env.source, env.ws)
	rtest.OK(t, err)
	rtest.Equals(t, UploadFailed, rep.State)
	rtest.Assert(t, exists(t, rep.Artifact.Path), "artifact %v was deleted", rep.Artifact.Path)
	rtest.Equals(t, 1, env.rec.Count(loggo.WARNING))
}

func TestRunArchiveFailureStillUploads(t *testing.T) {
	up := &fakeUploader{err: errors.New("no such file")}
	env := newTestEnv(t, up)

	rep, err := env.p.Run(context.TODO(), env.source+"-missing", env.ws)
	rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
	rtest.Equals(t, CleanupFailed, rep.State)
	rtest.Assert(t, rep.ArchiveErr != nil, "archive error not recorded")
	rtest.Equals(t, 1, len(up.calls))

	// the workspace step is not attempted after a fatal error
	rtest.Assert(t, exists(t, env.ws.Path), "workspace %v was removed", env.ws.Path)
}

func TestRunSkipUploadOnArchiveFailure(t *testing.T) {
	up := &fakeUploader{}
	env := newTestEnv(t, up)
	env.p.Policy.SkipUploadOnArchiveFailure = true

	rep, err := env.p.Run(context.TODO(), env.source+"-missing", env.ws)
	rtest.OK(t, err)
	rtest.Equals(t, CleanedUp, rep.State)
	rtest.Equals(t, 0, len(up.calls))
	rtest.Assert(t, !exists(t, env.ws.Path), "workspace %v was not removed", env.ws.Path)
}

func TestRunCanceledStillCleansUp(t *testing.T) {
	up := &fakeUploader{}
	env := newTestEnv(t, up)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := env.p.Run(ctx, env.source, env.ws)
	rtest.Assert(t, rep.ArchiveErr != nil, "archive ignored canceled context")
	rtest.Assert(t, errors.Is(rep.ArchiveErr, context.Canceled), "unexpected archive error %v", rep.ArchiveErr)

	// the archiver created the file before noticing the cancellation
	rtest.OK(t, err)
	rtest.Equals(t, CleanedUp, rep.State)
	rtest.Assert(t, !exists(t, env.ws.Path), "workspace %v was not removed", env.ws.Path)
}

func TestStateString(t *testing.T) {
	rtest.Equals(t, "Created", Created.String())
	rtest.Equals(t, "UploadFailed", UploadFailed.String())
	rtest.Equals(t, "CleanupFailed", CleanupFailed.String())
	rtest.Equals(t, "State(?)", State(42).String())
}
