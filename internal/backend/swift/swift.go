// Package swift provides a storage backend for OpenStack Swift.
package swift

import (
	"context"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/ncw/swift/v2"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// Backend stores archives in a Swift container.
type Backend struct {
	conn      *swift.Connection
	container string
	prefix    string
}

var _ backend.Backend = &Backend{}

func NewFactory() location.Factory {
	return location.NewHTTPBackendFactory("swift", ParseConfig, Open)
}

func connection(cfg Config, rt http.RoundTripper) *swift.Connection {
	return &swift.Connection{
		UserName:       cfg.UserName,
		UserId:         cfg.UserID,
		Domain:         cfg.Domain,
		DomainId:       cfg.DomainID,
		ApiKey:         cfg.APIKey,
		AuthUrl:        cfg.AuthURL,
		Region:         cfg.Region,
		Tenant:         cfg.Tenant,
		TenantId:       cfg.TenantID,
		TenantDomain:   cfg.TenantDomain,
		TenantDomainId: cfg.TenantDomainID,
		TrustId:        cfg.TrustID,
		StorageUrl:     cfg.StorageURL,
		AuthToken:      cfg.AuthToken,

		ApplicationCredentialId:     cfg.ApplicationCredentialID,
		ApplicationCredentialName:   cfg.ApplicationCredentialName,
		ApplicationCredentialSecret: cfg.ApplicationCredentialSecret,

		ConnectTimeout: time.Minute,
		Timeout:        time.Minute,
		Transport:      rt,
	}
}

// Open authenticates against the Swift endpoint and makes sure the
// container exists, creating it with the configured storage policy.
func Open(ctx context.Context, cfg Config, rt http.RoundTripper) (backend.Backend, error) {
	cfg.ApplyEnvironment("")
	debug.Log("open container %v prefix %v", cfg.Container, cfg.Prefix)

	be := &Backend{
		conn:      connection(cfg, rt),
		container: cfg.Container,
		prefix:    cfg.Prefix,
	}

	if !be.conn.Authenticated() {
		if err := be.conn.Authenticate(ctx); err != nil {
			return nil, errors.Wrap(err, "conn.Authenticate")
		}
	}

	if err := be.ensureContainer(ctx, cfg.DefaultContainerPolicy); err != nil {
		return nil, err
	}
	return be, nil
}

func (be *Backend) ensureContainer(ctx context.Context, policy string) error {
	_, _, err := be.conn.Container(ctx, be.container)
	if err == nil {
		return nil
	}
	if !errors.Is(err, swift.ContainerNotFound) {
		return errors.Wrap(err, "conn.Container")
	}

	var h swift.Headers
	if policy != "" {
		h = swift.Headers{"X-Storage-Policy": policy}
	}
	debug.Log("creating container %v", be.container)
	return errors.Wrap(be.conn.ContainerCreate(ctx, be.container, h), "conn.ContainerCreate")
}

// Location returns this backend's location (the container name).
func (be *Backend) Location() string {
	return "swift:" + be.container + ":/" + be.prefix
}

// Save uploads rd as the object name below the prefix.
func (be *Backend) Save(ctx context.Context, name string, rd io.Reader, size int64) (backend.FileInfo, error) {
	objName := path.Join(be.prefix, name)
	debug.Log("Save %v at %v", name, objName)

	var hdr swift.Headers
	if size >= 0 {
		hdr = swift.Headers{"Content-Length": strconv.FormatInt(size, 10)}
	}

	cr := &countingReader{rd: rd}
	_, err := be.conn.ObjectPut(ctx, be.container, objName, cr, false, "", backend.ContentType(name), hdr)
	debug.Log("ObjectPut(%v, %v): %v bytes, err %v", be.container, objName, cr.n, err)
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "conn.ObjectPut")
	}

	return backend.FileInfo{Name: name, Size: cr.n, ID: be.container + "/" + objName}, nil
}

// Close does nothing.
func (be *Backend) Close() error { return nil }

type countingReader struct {
	rd io.Reader
	n  int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.rd.Read(p)
	r.n += int64(n)
	return n, err
}
