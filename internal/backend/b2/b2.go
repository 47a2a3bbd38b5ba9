// Package b2 provides a storage backend for Backblaze B2.
package b2

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/Backblaze/blazer/b2"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// Backend uploads archives into a B2 bucket.
type Backend struct {
	bucket *b2.Bucket
	cfg    Config
}

var _ backend.Backend = &Backend{}

func NewFactory() location.Factory {
	return location.NewHTTPBackendFactory("b2", ParseConfig, Open)
}

// Open authorizes the account and looks up the bucket. Missing credentials
// are fatal since no retry can fix them.
func Open(ctx context.Context, cfg Config, rt http.RoundTripper) (backend.Backend, error) {
	cfg.ApplyEnvironment("")
	debug.Log("open bucket %v prefix %v", cfg.Bucket, cfg.Prefix)

	switch {
	case cfg.AccountID == "":
		return nil, errors.Fatal("unable to open B2 backend: Account ID ($B2_ACCOUNT_ID) is empty")
	case cfg.Key == "":
		return nil, errors.Fatal("unable to open B2 backend: Key ($B2_ACCOUNT_KEY) is empty")
	}

	client, err := b2.NewClient(ctx, cfg.AccountID, cfg.Key, b2.Transport(rt))
	if err != nil {
		return nil, errors.Wrap(err, "b2.NewClient")
	}

	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "bucket %v", cfg.Bucket)
	}

	return &Backend{bucket: bucket, cfg: cfg}, nil
}

// Location returns the location for the backend.
func (be *Backend) Location() string {
	return "b2:" + be.cfg.Bucket + ":" + be.cfg.Prefix
}

// Save uploads rd as the object name below the prefix.
func (be *Backend) Save(ctx context.Context, name string, rd io.Reader, _ int64) (backend.FileInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := be.bucket.Object(path.Join(be.cfg.Prefix, name))
	w := obj.NewWriter(ctx)

	n, err := io.Copy(w, rd)
	debug.Log("Save %v: %d bytes, err %v", name, n, err)
	if err != nil {
		_ = w.Close()
		return backend.FileInfo{}, errors.Wrap(err, "upload")
	}
	if err := w.Close(); err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "finish upload")
	}

	return backend.FileInfo{Name: name, Size: n, ID: obj.URL()}, nil
}

// Close does nothing.
func (be *Backend) Close() error { return nil }
