package gs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/test"
	rtest "github.com/pushback/pushback/internal/test"
)

// fakeStore keeps uploaded objects in memory.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) NewWriter(ctx context.Context, name string) objectWriter {
	return &fakeWriter{ctx: ctx, store: s, name: name}
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) get(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.objects[name]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return buf, nil
}

type fakeWriter struct {
	ctx   context.Context
	store *fakeStore
	name  string
	buf   bytes.Buffer
	attrs *storage.ObjectAttrs
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	return w.buf.Write(p)
}

func (w *fakeWriter) Close() error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if w.store.failing {
		return errors.New("googleapi: Error 403: forbidden")
	}
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.objects[w.name] = w.buf.Bytes()
	w.attrs = &storage.ObjectAttrs{Bucket: "bucket", Name: w.name, Size: int64(w.buf.Len())}
	return nil
}

func (w *fakeWriter) Attrs() *storage.ObjectAttrs { return w.attrs }

func TestBackend(t *testing.T) {
	store := newFakeStore()
	suite := &test.Suite[Config]{
		NewConfig: func() (Config, error) {
			return Config{Bucket: "bucket", Prefix: "backups/laptop"}, nil
		},
		Open: func(cfg Config) (backend.Backend, error) {
			return newBackend(cfg, store), nil
		},
		Load: func(cfg Config, name string) ([]byte, error) {
			return store.get(cfg.Prefix + "/" + name)
		},
	}
	suite.RunTests(t)
}

func TestSaveFileInfo(t *testing.T) {
	be := newBackend(Config{Bucket: "bucket"}, newFakeStore())
	rtest.Equals(t, "gs:bucket", be.Location())

	fi, err := be.Save(context.TODO(), "a.tar.gz", bytes.NewReader([]byte("data")), 4)
	rtest.OK(t, err)
	rtest.Equals(t, backend.FileInfo{Name: "a.tar.gz", Size: 4, ID: "bucket/a.tar.gz"}, fi)
}

func TestSaveError(t *testing.T) {
	store := newFakeStore()
	store.failing = true
	be := newBackend(Config{Bucket: "bucket"}, store)

	_, err := be.Save(context.TODO(), "a.tar.gz", bytes.NewReader([]byte("data")), 4)
	rtest.Assert(t, err != nil, "expected error")
	_, err = store.get("a.tar.gz")
	rtest.Assert(t, errors.Is(err, storage.ErrObjectNotExist), "failed upload left object behind")
}

// newUnavailableStore returns a store talking to a server which answers
// every request with 503.
func newUnavailableStore(t *testing.T) (*bucketStore, *atomic.Int32) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, `{"error":{"code":503,"message":"backend error"}}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, err := storage.NewClient(context.TODO(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/storage/v1/"))
	rtest.OK(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return newBucketStore(client, "bucket"), &requests
}

func TestSaveNoRetry(t *testing.T) {
	store, requests := newUnavailableStore(t)
	be := newBackend(Config{Bucket: "bucket"}, store)

	// larger than the client's default chunk size
	data := rtest.Random(3, 17<<20)
	_, err := be.Save(context.TODO(), "a.tar.gz", bytes.NewReader(data), int64(len(data)))
	rtest.Assert(t, err != nil, "upload to an unavailable server succeeded")
	rtest.Equals(t, int32(1), requests.Load())
}

func TestWriterContentType(t *testing.T) {
	store, _ := newUnavailableStore(t)

	for name, want := range map[string]string{
		"20240309-140507-docs.tar.gz":     "application/gzip",
		"20240309-140507-docs.tar.gz.enc": "application/octet-stream",
	} {
		w := store.NewWriter(context.TODO(), name).(*storage.Writer)
		rtest.Equals(t, want, w.ContentType)
		rtest.Equals(t, 0, w.ChunkSize)
	}
}
