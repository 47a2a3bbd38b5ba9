// Package azure provides a storage backend for Azure Blob Storage.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	azContainer "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// Backend stores archives in an azure blob container.
type Backend struct {
	cfg       Config
	container *azContainer.Client
}

// make sure that *Backend implements backend.Backend
var _ backend.Backend = &Backend{}

func NewFactory() location.Factory {
	return location.NewHTTPBackendFactory("azure", ParseConfig, Open)
}

// Open connects to the container described by cfg. Credentials are taken
// from the account key, a SAS token or the azure identity chain, in that
// order.
func Open(_ context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	debug.Log("open, config %#v", cfg)
	cfg.ApplyEnvironment()

	var client *azContainer.Client
	var err error

	endpointSuffix := cfg.EndpointSuffix
	if endpointSuffix == "" {
		endpointSuffix = "core.windows.net"
	}
	url := fmt.Sprintf("https://%s.blob.%s/%s", cfg.AccountName, endpointSuffix, cfg.Container)
	opts := clientOptions(rt)

	switch {
	case cfg.AccountKey != "":
		debug.Log(" - using account key")
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, errors.Wrap(err, "NewSharedKeyCredential")
		}

		client, err = azContainer.NewClientWithSharedKeyCredential(url, cred, opts)
		if err != nil {
			return nil, errors.Wrap(err, "NewClientWithSharedKeyCredential")
		}
	case cfg.AccountSAS != "":
		debug.Log(" - using sas token")
		sas := cfg.AccountSAS

		// strip query sign prefix
		if sas[0] == '?' {
			sas = sas[1:]
		}

		client, err = azContainer.NewClientWithNoCredential(url+"?"+sas, opts)
		if err != nil {
			return nil, errors.Wrap(err, "NewClientWithNoCredential")
		}
	default:
		var cred azcore.TokenCredential

		if cfg.ForceCliCredential {
			debug.Log(" - using AzureCLICredential")
			cred, err = azidentity.NewAzureCLICredential(nil)
			if err != nil {
				return nil, errors.Wrap(err, "NewAzureCLICredential")
			}
		} else {
			debug.Log(" - using DefaultAzureCredential")
			cred, err = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
				ClientOptions: opts.ClientOptions,
			})
			if err != nil {
				return nil, errors.Wrap(err, "NewDefaultAzureCredential")
			}
		}

		client, err = azContainer.NewClient(url, cred, opts)
		if err != nil {
			return nil, errors.Wrap(err, "NewClient")
		}
	}

	return newBackend(cfg, client), nil
}

// clientOptions routes requests through rt and turns off the SDK's retry
// policy, a failed request fails the upload.
func clientOptions(rt http.RoundTripper) *azContainer.ClientOptions {
	return &azContainer.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: &http.Client{Transport: rt},
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	}
}

func newBackend(cfg Config, client *azContainer.Client) *Backend {
	return &Backend{
		cfg:       cfg,
		container: client,
	}
}

// Location returns this backend's location (the container name).
func (be *Backend) Location() string {
	return "azure:" + path.Join(be.cfg.Container, be.cfg.Prefix)
}

// Save uploads rd as a block blob called name below the prefix, in a single
// Put Blob request.
func (be *Backend) Save(ctx context.Context, name string, rd io.Reader, size int64) (backend.FileInfo, error) {
	objName := path.Join(be.cfg.Prefix, name)
	debug.Log("InsertObject(%v, %v)", be.cfg.AccountName, objName)

	body, err := uploadBody(rd, size)
	if err != nil {
		return backend.FileInfo{}, err
	}

	n, err := body.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = body.Seek(0, io.SeekStart)
	}
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "Seek")
	}

	blockBlobClient := be.container.NewBlockBlobClient(objName)
	_, err = blockBlobClient.Upload(ctx, streaming.NopCloser(body), &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: ptr(backend.ContentType(name)),
		},
	})
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "Upload")
	}

	return backend.FileInfo{Name: name, Size: n, ID: blockBlobClient.URL()}, nil
}

// uploadBody returns rd in the seekable form the SDK needs to send the
// Content-Length up front. Streams of unknown size are read into memory.
func uploadBody(rd io.Reader, size int64) (io.ReadSeeker, error) {
	if rs, ok := rd.(io.ReadSeeker); ok {
		return rs, nil
	}
	if size >= 0 {
		return &sizedReader{rd: rd, size: size}, nil
	}

	buf, err := io.ReadAll(rd)
	if err != nil {
		return nil, errors.Wrap(err, "ReadAll")
	}
	return bytes.NewReader(buf), nil
}

// sizedReader reports a known size for a stream which can be read only
// once. Seeking is allowed until the first read, afterwards only to the
// current offset.
type sizedReader struct {
	rd   io.Reader
	size int64
	read int64
	pos  int64
}

func (r *sizedReader) Read(p []byte) (int, error) {
	if r.pos != r.read {
		return 0, errors.Errorf("read at offset %d, stream is at %d", r.pos, r.read)
	}
	n, err := r.rd.Read(p)
	r.read += int64(n)
	r.pos = r.read
	return n, err
}

func (r *sizedReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, errors.Errorf("invalid whence %d", whence)
	}

	if abs < 0 || abs > r.size {
		return 0, errors.Errorf("seek to %d outside of [0, %d]", abs, r.size)
	}
	if r.read > 0 && abs != r.read {
		return 0, errors.Errorf("cannot seek to %d after reading %d bytes", abs, r.read)
	}

	r.pos = abs
	return abs, nil
}

// Close does nothing.
func (be *Backend) Close() error { return nil }

func ptr[T any](v T) *T { return &v }
