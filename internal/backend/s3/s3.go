// Package s3 provides a storage backend for S3 compatible servers.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// Backend stores archives on an S3 endpoint.
type Backend struct {
	client *minio.Client
	cfg    Config
}

// make sure that *Backend implements backend.Backend
var _ backend.Backend = &Backend{}

func NewFactory() location.Factory {
	return location.NewHTTPBackendFactory("s3", ParseConfig, Open)
}

// Open connects to the bucket described by cfg.
func Open(_ context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	cfg.ApplyEnvironment()
	debug.Log("open %v/%v at %v", cfg.Bucket, cfg.Prefix, cfg.Endpoint)
	return open(cfg, rt, credentialChain(cfg))
}

// credentialChain tries the static keys from cfg first, then the AWS and
// MinIO variables and files, and finally the EC2 instance profile.
func credentialChain(cfg Config) *credentials.Credentials {
	providers := []credentials.Provider{
		&credentials.Static{Value: credentials.Value{AccessKeyID: cfg.KeyID, SecretAccessKey: cfg.Secret}},
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
		&credentials.FileAWSCredentials{},
		&credentials.FileMinioClient{},
		&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
	}
	return credentials.NewChainCredentials(providers)
}

var bucketLookups = map[string]minio.BucketLookupType{
	"":     minio.BucketLookupAuto,
	"auto": minio.BucketLookupAuto,
	"dns":  minio.BucketLookupDNS,
	"path": minio.BucketLookupPath,
}

func open(cfg Config, rt http.RoundTripper, creds *credentials.Credentials) (*Backend, error) {
	// a single attempt per request, the run reports failed uploads instead
	minio.MaxRetry = 1

	c, err := creds.Get()
	if err != nil {
		return nil, errors.Wrap(err, "creds.Get")
	}

	if c.SignerType == credentials.SignatureAnonymous {
		debug.Log("using anonymous access for %#v", cfg.Endpoint)
	}

	lookup, ok := bucketLookups[strings.ToLower(cfg.BucketLookup)]
	if !ok {
		return nil, fmt.Errorf(`bad bucket-lookup style %q must be "auto", "path" or "dns"`, cfg.BucketLookup)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        creds,
		Secure:       !cfg.UseHTTP,
		Region:       cfg.Region,
		Transport:    rt,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio.New")
	}

	return &Backend{
		client: client,
		cfg:    cfg,
	}, nil
}

// Location returns this backend's location (the bucket name).
func (be *Backend) Location() string {
	return "s3:" + path.Join(be.cfg.Endpoint, be.cfg.Bucket, be.cfg.Prefix)
}

// Save uploads rd as the object name below the prefix.
func (be *Backend) Save(ctx context.Context, name string, rd io.Reader, size int64) (backend.FileInfo, error) {
	objName := path.Join(be.cfg.Prefix, name)

	debug.Log("PutObject(%v, %v, %v)", be.cfg.Bucket, objName, size)
	info, err := be.client.PutObject(ctx, be.cfg.Bucket, objName, rd, size, be.putOptions(name, rd, size))

	debug.Log("%v -> %v bytes, err %#v: %v", objName, info.Size, err, err)
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "client.PutObject")
	}

	if size >= 0 && info.Size != size {
		return backend.FileInfo{}, errors.Errorf("wrote %d bytes instead of the expected %d bytes", info.Size, size)
	}

	return backend.FileInfo{Name: name, Size: info.Size, ID: info.Bucket + "/" + info.Key}, nil
}

// putOptions sends an artifact of known size in a single PUT request.
// Without a size minio can only stream it as a multipart upload. The MD5
// is only sent for readers minio can rewind, others would be buffered.
func (be *Backend) putOptions(name string, rd io.Reader, size int64) minio.PutObjectOptions {
	_, rewindable := rd.(io.ReaderAt)
	return minio.PutObjectOptions{
		StorageClass:     be.cfg.StorageClass,
		ContentType:      backend.ContentType(name),
		SendContentMd5:   rewindable,
		DisableMultipart: size >= 0,
	}
}

// Close does nothing.
func (be *Backend) Close() error { return nil }
