package pipeline

import (
	"context"
	"os"

	"github.com/pushback/pushback/internal/archiver"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
)

// State is the progress of one run. It only moves forward.
type State int

const (
	Created State = iota
	Archived
	ArchiveFailed
	Uploaded
	UploadFailed
	CleanedUp
	CleanupFailed
)

var stateNames = [...]string{
	Created:       "Created",
	Archived:      "Archived",
	ArchiveFailed: "ArchiveFailed",
	Uploaded:      "Uploaded",
	UploadFailed:  "UploadFailed",
	CleanedUp:     "CleanedUp",
	CleanupFailed: "CleanupFailed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(?)"
	}
	return stateNames[s]
}

// Policy decides whether the run continues after a failed step. The zero
// value uploads whatever the archiver left behind and always deletes the
// artifact afterwards.
type Policy struct {
	SkipUploadOnArchiveFailure  bool
	KeepArtifactOnUploadFailure bool
}

// Report records what happened during a run.
type Report struct {
	State    State
	Artifact archiver.Artifact
	Upload   UploadResult

	ArchiveErr error
	UploadErr  error
	CleanupErr error
}

// Success is true when every step completed.
func (r Report) Success() bool {
	return r.State == CleanedUp && r.ArchiveErr == nil && r.UploadErr == nil
}

// Pipeline wires the three steps of a backup together.
type Pipeline struct {
	Archiver *archiver.Archiver
	Uploader Uploader
	Cleaner  *Cleaner
	Policy   Policy
	Logger   logging.Logger
}

func (p *Pipeline) log() logging.Logger {
	if p.Logger == nil {
		return logging.Discard()
	}
	return p.Logger
}

// Run backs up source through the workspace ws. Failed archive and upload
// steps are recorded in the report and logged by the steps themselves; the
// returned error is only set when cleanup failed fatally.
func (p *Pipeline) Run(ctx context.Context, source string, ws Workspace) (Report, error) {
	rep := Report{State: Created}

	art, err := p.Archiver.Archive(ctx, archiver.Request{SourcePath: source, OutputDirectory: ws.Path})
	rep.Artifact = art
	if err != nil {
		rep.ArchiveErr = err
		rep.State = ArchiveFailed
	} else {
		rep.State = Archived
	}

	skipped := rep.ArchiveErr != nil && p.Policy.SkipUploadOnArchiveFailure
	if skipped {
		p.log().Warningf("Skipping upload of %s, archiving failed", art.Path)
	} else {
		res, err := p.Uploader.Upload(ctx, art.Path)
		rep.Upload = res
		if err != nil {
			rep.UploadErr = err
			rep.State = UploadFailed
		} else {
			rep.State = Uploaded
		}
	}

	if rep.UploadErr != nil && p.Policy.KeepArtifactOnUploadFailure {
		p.log().Warningf("Keeping %s after the failed upload, delete it manually once it is no longer needed", art.Path)
		return rep, nil
	}

	cleaner := p.Cleaner
	if cleaner == nil {
		cleaner = &Cleaner{Logger: p.Logger}
	}

	// nothing to delete when the archiver never created the file
	if skipped {
		if _, err := os.Lstat(art.Path); errors.IsNotExist(err) {
			cleaner.removeWorkspace(ws)
			rep.State = CleanedUp
			return rep, nil
		}
	}

	if err := cleaner.Cleanup(art.Path, ws); err != nil {
		rep.CleanupErr = err
		rep.State = CleanupFailed
		return rep, err
	}

	rep.State = CleanedUp
	return rep, nil
}
