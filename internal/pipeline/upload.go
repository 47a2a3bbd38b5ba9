package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
)

// UploadResult describes the remote object created by an upload. RemoteID
// is empty when the upload failed.
type UploadResult struct {
	RemoteID string
	Name     string
	Size     int64
}

// Uploader transfers an artifact to the remote.
type Uploader interface {
	Upload(ctx context.Context, filename string) (UploadResult, error)
}

// remoteNames are used in log messages.
var remoteNames = map[string]string{
	"drive": "Google Drive",
	"gs":    "Google Cloud Storage",
	"s3":    "S3",
	"azure": "Azure Blob Storage",
	"b2":    "Backblaze B2",
	"swift": "Swift",
	"sftp":  "the SFTP server",
	"local": "the local directory",
}

// RemoteName returns a human readable name for the remote of loc.
func RemoteName(loc location.Location) string {
	if name, ok := remoteNames[loc.Scheme]; ok {
		return name
	}
	return loc.Scheme
}

// BackendUploader opens the backend for Location and stores the artifact
// there under its own file name.
type BackendUploader struct {
	Registry *location.Registry
	Location location.Location
	Env      location.Env
	Logger   logging.Logger

	// Encrypted only changes how the artifact is described in the log.
	Encrypted bool
}

// Upload authenticates with the remote, then uploads filename as a new object.
func (u *BackendUploader) Upload(ctx context.Context, filename string) (UploadResult, error) {
	logger := u.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	remote := RemoteName(u.Location)
	env := u.Env
	if env.Logger == nil {
		env.Logger = logger
	}

	logger.Infof("Attempting to authenticate with %s", remote)
	be, err := u.Registry.Open(ctx, u.Location, env)
	if err != nil {
		logger.Errorf("Could not authenticate with %s: %v", remote, err)
		return UploadResult{}, err
	}
	defer func() {
		if err := be.Close(); err != nil {
			debug.Log("Close: %v", err)
		}
	}()
	logger.Infof("Success in authenticating with %s", remote)

	what := "archived and compressed"
	if u.Encrypted {
		what = "archived, compressed and encrypted"
	}

	logger.Infof("Attempting to upload the %s file to %s", what, remote)
	res, err := u.save(ctx, be, filename)
	if err != nil {
		logger.Errorf("Could not upload to %s: %v", remote, err)
		return UploadResult{}, err
	}

	logger.Infof("Success in uploading the %s file to %s", what, remote)
	return res, nil
}

func (u *BackendUploader) save(ctx context.Context, be backend.Backend, filename string) (UploadResult, error) {
	f, err := os.Open(filename)
	if err != nil {
		return UploadResult{}, errors.WithStack(err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return UploadResult{}, errors.WithStack(err)
	}

	info, err := be.Save(ctx, filepath.Base(filename), f, fi.Size())
	if err != nil {
		return UploadResult{}, err
	}

	debug.Log("uploaded %v as %v (%d bytes)", filename, info.ID, info.Size)
	return UploadResult{RemoteID: info.ID, Name: info.Name, Size: info.Size}, nil
}
