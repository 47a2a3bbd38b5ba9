package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/pushback/pushback/internal/auth"
	"github.com/pushback/pushback/internal/errors"
	rtest "github.com/pushback/pushback/internal/test"
)

type fakeFile struct {
	drive.File
	content []byte
}

// fakeDrive implements the small part of the Drive v3 API used by the
// backend: listing by name, creating folders and multipart uploads.
type fakeDrive struct {
	mu     sync.Mutex
	files  []*fakeFile
	nextID int

	failUploads bool
	unavailable bool
	uploadTypes []string
}

var (
	nameQuery   = regexp.MustCompile(`name = '((?:[^'\\]|\\.)*)'`)
	parentQuery = regexp.MustCompile(`'((?:[^'\\]|\\.)*)' in parents`)
)

func (d *fakeDrive) add(f *fakeFile) *drive.File {
	d.nextID++
	f.Id = fmt.Sprintf("id-%d", d.nextID)
	if len(f.Parents) == 0 {
		f.Parents = []string{"root"}
	}
	d.files = append(d.files, f)
	return &f.File
}

func (d *fakeDrive) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ut := req.URL.Query().Get("uploadType"); ut != "" {
		d.uploadTypes = append(d.uploadTypes, ut)
		if d.unavailable {
			_, _ = io.Copy(io.Discard, req.Body)
			http.Error(rw, `{"error":{"code":503,"message":"backend error"}}`, http.StatusServiceUnavailable)
			return
		}
	}

	var result interface{}
	switch {
	case req.Method == http.MethodGet && strings.HasSuffix(req.URL.Path, "/files"):
		q := req.URL.Query().Get("q")
		name := nameQuery.FindStringSubmatch(q)
		parent := parentQuery.FindStringSubmatch(q)
		list := &drive.FileList{Files: []*drive.File{}}
		for _, f := range d.files {
			if name != nil && f.Name == name[1] && parent != nil && f.Parents[0] == parent[1] {
				list.Files = append(list.Files, &f.File)
			}
		}
		result = list

	case req.Method == http.MethodPost && req.URL.Query().Get("uploadType") == "multipart":
		if d.failUploads {
			http.Error(rw, `{"error":{"code":403,"message":"storage quota exceeded"}}`, http.StatusForbidden)
			return
		}
		f, err := parseUpload(req)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		result = d.add(f)

	case req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/files"):
		f := &fakeFile{}
		if err := json.NewDecoder(req.Body).Decode(&f.File); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		result = d.add(f)

	default:
		http.Error(rw, "unexpected request "+req.Method+" "+req.URL.String(), http.StatusNotImplemented)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(result)
}

func parseUpload(req *http.Request) (*fakeFile, error) {
	_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	mr := multipart.NewReader(req.Body, params["boundary"])
	meta, err := mr.NextPart()
	if err != nil {
		return nil, err
	}

	f := &fakeFile{}
	if err := json.NewDecoder(meta).Decode(&f.File); err != nil {
		return nil, err
	}

	media, err := mr.NextPart()
	if err != nil {
		return nil, err
	}
	f.content, err = io.ReadAll(media)
	if err != nil {
		return nil, err
	}
	f.Size = int64(len(f.content))

	return f, nil
}

func (d *fakeDrive) find(name string) []*fakeFile {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res []*fakeFile
	for _, f := range d.files {
		if f.Name == name {
			res = append(res, f)
		}
	}
	return res
}

func newTestBackend(t testing.TB, folder string) (*Backend, *fakeDrive) {
	fake := &fakeDrive{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	be, err := newBackend(context.TODO(), Config{Folder: folder},
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/drive/v3/"))
	rtest.OK(t, err)
	return be, fake
}

func TestSaveRoot(t *testing.T) {
	be, fake := newTestBackend(t, "")
	data := rtest.Random(1, 5000)

	fi, err := be.Save(context.TODO(), "20240309-140507-docs.tar.gz", bytes.NewReader(data), int64(len(data)))
	rtest.OK(t, err)
	rtest.Equals(t, "20240309-140507-docs.tar.gz", fi.Name)
	rtest.Equals(t, int64(len(data)), fi.Size)
	rtest.Assert(t, fi.ID != "", "no remote ID returned")

	files := fake.find("20240309-140507-docs.tar.gz")
	rtest.Equals(t, 1, len(files))
	rtest.Equals(t, []string{"root"}, files[0].Parents)
	rtest.Assert(t, bytes.Equal(data, files[0].content), "uploaded content differs")
	rtest.Equals(t, "drive:", be.Location())
}

func TestSaveFolder(t *testing.T) {
	be, fake := newTestBackend(t, "backups/laptop")

	for _, name := range []string{"first.tar.gz", "second.tar.gz"} {
		_, err := be.Save(context.TODO(), name, strings.NewReader(name), -1)
		rtest.OK(t, err)
	}

	backups := fake.find("backups")
	rtest.Equals(t, 1, len(backups))
	rtest.Equals(t, folderMimeType, backups[0].MimeType)

	laptop := fake.find("laptop")
	rtest.Equals(t, 1, len(laptop))
	rtest.Equals(t, []string{backups[0].Id}, laptop[0].Parents)

	for _, name := range []string{"first.tar.gz", "second.tar.gz"} {
		files := fake.find(name)
		rtest.Equals(t, 1, len(files))
		rtest.Equals(t, []string{laptop[0].Id}, files[0].Parents)
		rtest.Equals(t, name, string(files[0].content))
	}
}

func TestSaveExistingFolder(t *testing.T) {
	be, fake := newTestBackend(t, "backups")
	fake.add(&fakeFile{File: drive.File{Name: "backups", MimeType: folderMimeType}})

	_, err := be.Save(context.TODO(), "a.tar.gz", strings.NewReader("a"), 1)
	rtest.OK(t, err)
	rtest.Equals(t, 1, len(fake.find("backups")))
}

func TestSaveFolderIsFile(t *testing.T) {
	be, fake := newTestBackend(t, "backups")
	fake.add(&fakeFile{File: drive.File{Name: "backups", MimeType: "text/plain"}})

	_, err := be.Save(context.TODO(), "a.tar.gz", strings.NewReader("a"), 1)
	rtest.Assert(t, err != nil, "uploaded into a file")
}

func TestSaveError(t *testing.T) {
	be, fake := newTestBackend(t, "")
	fake.failUploads = true

	fi, err := be.Save(context.TODO(), "a.tar.gz", strings.NewReader("a"), 1)
	rtest.Assert(t, err != nil, "failed upload returned no error")
	rtest.Equals(t, "", fi.ID)
}

func TestSaveSingleRequest(t *testing.T) {
	be, fake := newTestBackend(t, "")
	fake.unavailable = true

	// above the 16 MiB where the client would start a resumable upload
	data := rtest.Random(7, 17<<20)
	_, err := be.Save(context.TODO(), "big.tar.gz", bytes.NewReader(data), int64(len(data)))
	rtest.Assert(t, err != nil, "upload to an unavailable server succeeded")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	rtest.Equals(t, []string{"multipart"}, fake.uploadTypes)
}

type countingAuthenticator struct {
	calls int
	err   error
}

func (a *countingAuthenticator) Authenticate(ctx context.Context) (auth.Session, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return auth.Static(&oauth2.Token{AccessToken: "secret", TokenType: "Bearer"}, nil).Authenticate(ctx)
}

func TestOpenAuthenticationFails(t *testing.T) {
	authn := &countingAuthenticator{err: errors.New("consent denied")}

	_, err := Open(context.TODO(), Config{}, http.DefaultTransport, authn)
	rtest.Assert(t, err != nil, "authentication failure was ignored")
	rtest.Equals(t, 1, authn.calls)
}

func TestOpenAuthenticates(t *testing.T) {
	authn := &countingAuthenticator{}

	be, err := Open(context.TODO(), Config{Folder: "x"}, http.DefaultTransport, authn)
	rtest.OK(t, err)
	rtest.Equals(t, 1, authn.calls)
	rtest.Equals(t, "drive:x", be.Location())
	rtest.OK(t, be.Close())
}
