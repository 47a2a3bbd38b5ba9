// Package gs provides a storage backend for Google Cloud Storage.
package gs

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// objectStore mediates calls to the GCS service, so tests can swap it out.
type objectStore interface {
	NewWriter(ctx context.Context, name string) objectWriter
	Close() error
}

// objectWriter is the part of *storage.Writer used by Save.
type objectWriter interface {
	io.WriteCloser
	Attrs() *storage.ObjectAttrs
}

// bucketStore satisfies objectStore by making GCS requests.
type bucketStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// newBucketStore disables the client's retries, an upload is a single
// attempt.
func newBucketStore(client *storage.Client, bucket string) *bucketStore {
	return &bucketStore{
		client: client,
		bucket: client.Bucket(bucket).Retryer(storage.WithPolicy(storage.RetryNever)),
	}
}

func (s *bucketStore) NewWriter(ctx context.Context, name string) objectWriter {
	w := s.bucket.Object(name).NewWriter(ctx)
	// send the object in one request instead of resumable chunks
	w.ChunkSize = 0
	w.ContentType = backend.ContentType(name)
	return w
}

func (s *bucketStore) Close() error {
	return s.client.Close()
}

// Backend stores archives in a GCS bucket.
type Backend struct {
	store  objectStore
	bucket string
	prefix string
}

// make sure that *Backend implements backend.Backend
var _ backend.Backend = &Backend{}

func NewFactory() location.Factory {
	return location.NewHTTPBackendFactory("gs", ParseConfig, Open)
}

func getStorageClient(ctx context.Context, rt http.RoundTripper) (*storage.Client, error) {
	// route token requests through our transport as well
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: rt})

	var ts oauth2.TokenSource
	if token := os.Getenv("GOOGLE_ACCESS_TOKEN"); token != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		})
	} else {
		creds, err := google.FindDefaultCredentials(ctx, storage.ScopeReadWrite)
		if err != nil {
			return nil, errors.Wrap(err, "FindDefaultCredentials")
		}
		ts = creds.TokenSource
	}

	httpClient := oauth2.NewClient(ctx, ts)
	return storage.NewClient(ctx, option.WithHTTPClient(httpClient))
}

// Open connects to the bucket described by cfg.
func Open(ctx context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	debug.Log("open, config %#v", cfg)
	cfg.ApplyEnvironment()

	client, err := getStorageClient(ctx, rt)
	if err != nil {
		return nil, errors.Wrap(err, "getStorageClient")
	}

	return newBackend(cfg, newBucketStore(client, cfg.Bucket)), nil
}

func newBackend(cfg Config, store objectStore) *Backend {
	return &Backend{
		store:  store,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
}

// Location returns this backend's location (the bucket name and prefix).
func (be *Backend) Location() string {
	return "gs:" + path.Join(be.bucket, be.prefix)
}

// Save uploads rd as the object name below the prefix.
func (be *Backend) Save(ctx context.Context, name string, rd io.Reader, _ int64) (backend.FileInfo, error) {
	objName := path.Join(be.prefix, name)
	debug.Log("Save %v at %v", name, objName)

	// canceling the context aborts the upload
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := be.store.NewWriter(ctx, objName)
	wbytes, err := io.Copy(w, rd)
	if err != nil {
		cancel()
		_ = w.Close()
		return backend.FileInfo{}, errors.Wrapf(err, "upload %v", objName)
	}

	if err := w.Close(); err != nil {
		debug.Log("%v: err %#v: %v", objName, err, err)
		return backend.FileInfo{}, errors.Wrapf(err, "upload %v", objName)
	}

	fi := backend.FileInfo{Name: name, Size: wbytes, ID: objName}
	if attrs := w.Attrs(); attrs != nil {
		fi.Size = attrs.Size
		fi.ID = attrs.Bucket + "/" + attrs.Name
	}

	debug.Log("%v -> %v bytes", objName, fi.Size)
	return fi, nil
}

// Close releases the storage client.
func (be *Backend) Close() error {
	return be.store.Close()
}
