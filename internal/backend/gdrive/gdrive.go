// Package gdrive uploads artifacts to Google Drive.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pushback/pushback/internal/auth"
	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

const (
	rootFolderID = ""

	folderMimeType = "application/vnd.google-apps.folder"

	artifactMimeType = "application/octet-stream"
)

type notFoundError struct {
	parentID, name string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("path does not exist (%s)/%q", e.parentID, e.name)
}

// splits provided path into folder path and file name
// unlike path.Split(), dir return value does not have trailing slash
func splitPath(path string) (dir, name string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// quote escapes s for use in a Drive query string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, `'`, `\'`) + "'"
}

func getItem(ctx context.Context, srv *drive.Service, parentID, name string) (*drive.File, error) {
	debug.Log("getItem(parentID=%q, name=%q)", parentID, name)
	q := "trashed = false and name = " + quote(name)
	if parentID != rootFolderID {
		q += " and " + quote(parentID) + " in parents"
	} else {
		q += " and 'root' in parents"
	}

	r, err := srv.Files.List().Q(q).Fields("files(id,name,size,mimeType)").Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	switch len(r.Files) {
	case 0:
		return nil, notFoundError{parentID, name}
	case 1:
		return r.Files[0], nil
	default:
		// Drive allows duplicate names, folders are only ever created once by us
		debug.Log("found %d items named %q, using the first one", len(r.Files), name)
		return r.Files[0], nil
	}
}

func createFolder(ctx context.Context, srv *drive.Service, parentID, name string) (*drive.File, error) {
	debug.Log("createFolder(parentID=%q, name=%q)", parentID, name)
	dir := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	if parentID != rootFolderID {
		dir.Parents = []string{parentID}
	}
	return srv.Files.Create(dir).Fields("id", "name", "mimeType").Context(ctx).Do()
}

func isNotExist(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	var nf notFoundError
	return errors.As(err, &nf)
}

// Backend uploads artifacts into one Drive folder.
type Backend struct {
	service *drive.Service
	cfg     Config

	// lazily populated path->id map, guarded by dirsLock
	dirs     map[string]string
	dirsLock sync.Mutex
}

var _ backend.Backend = &Backend{}

// NewFactory returns the factory registered for the drive: scheme.
func NewFactory() location.Factory {
	return location.NewAuthBackendFactory("drive", ParseConfig, Open)
}

// Open authenticates with authn and returns a backend for cfg.
func Open(ctx context.Context, cfg Config, rt http.RoundTripper, authn auth.Authenticator) (*Backend, error) {
	debug.Log("open, config %#v", cfg)

	session, err := authn.Authenticate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "authenticating with Google")
	}

	// the session client must outlive ctx of this call
	client := session.Client(context.Background())
	return newBackend(ctx, cfg, option.WithHTTPClient(client))
}

func newBackend(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Backend, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "drive.NewService")
	}

	return &Backend{
		service: service,
		cfg:     cfg,
		dirs:    make(map[string]string),
	}, nil
}

func (be *Backend) getOrCreateFolder(ctx context.Context, path string) (string, error) {
	if path == "" {
		return rootFolderID, nil
	}
	if id := be.dirs[path]; id != "" {
		return id, nil
	}

	parent, name := splitPath(path)
	parentID, err := be.getOrCreateFolder(ctx, parent)
	if err != nil {
		return "", err
	}

	dir, err := getItem(ctx, be.service, parentID, name)
	switch {
	case err == nil && dir.MimeType != folderMimeType:
		return "", errors.Errorf("%v exists and is not a folder", path)
	case err == nil:
	case isNotExist(err):
		dir, err = createFolder(ctx, be.service, parentID, name)
		if err != nil {
			return "", errors.Wrapf(err, "creating folder %v", path)
		}
	default:
		return "", err
	}

	be.dirs[path] = dir.Id
	return dir.Id, nil
}

func (be *Backend) folderID(ctx context.Context) (string, error) {
	be.dirsLock.Lock()
	defer be.dirsLock.Unlock()

	return be.getOrCreateFolder(ctx, be.cfg.Folder)
}

// Location returns the Drive folder artifacts are uploaded to.
func (be *Backend) Location() string {
	return "drive:" + be.cfg.Folder
}

// Save uploads rd as a new file called name. Existing files with the same
// name are left alone, Drive keeps both.
func (be *Backend) Save(ctx context.Context, name string, rd io.Reader, size int64) (backend.FileInfo, error) {
	parentID, err := be.folderID(ctx)
	if err != nil {
		return backend.FileInfo{}, err
	}

	file := &drive.File{
		Name:     name,
		MimeType: artifactMimeType,
	}
	if parentID != rootFolderID {
		file.Parents = []string{parentID}
	}

	debug.Log("uploading %v (%d bytes) to folder %q", name, size, parentID)
	// ChunkSize(0) keeps this a single multipart request, larger files would
	// otherwise switch to a resumable upload which retries on its own
	file, err = be.service.Files.Create(file).
		Media(rd, googleapi.ContentType(artifactMimeType), googleapi.ChunkSize(0)).
		Fields("id", "name", "size").
		Context(ctx).
		Do()
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "Files.Create")
	}

	return backend.FileInfo{Name: file.Name, Size: file.Size, ID: file.Id}, nil
}

// Close the backend, does nothing
func (be *Backend) Close() error {
	return nil
}
