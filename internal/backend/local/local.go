package local

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// Local is a backend in a local directory.
type Local struct {
	Config
}

// ensure statically that *Local implements backend.Backend.
var _ backend.Backend = &Local{}

func NewFactory() location.Factory {
	return location.NewLocalBackendFactory("local", ParseConfig, Open)
}

// Open opens the local backend as specified by config. The directory is
// created if it does not exist yet.
func Open(_ context.Context, cfg Config) (*Local, error) {
	debug.Log("open local backend at %v", cfg.Path)

	if err := os.MkdirAll(cfg.Path, 0700); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Local{Config: cfg}, nil
}

// Location returns this backend's location (the directory name).
func (b *Local) Location() string {
	return b.Path
}

// Save stores the content of rd in the file name below the directory.
func (b *Local) Save(ctx context.Context, name string, rd io.Reader, size int64) (fi backend.FileInfo, err error) {
	debug.Log("Save %v", name)
	if name == "" || filepath.Base(name) != name {
		return fi, errors.Errorf("invalid file name %q", name)
	}

	finalname := filepath.Join(b.Path, name)

	// Create new file with a temporary name.
	f, err := os.CreateTemp(b.Path, name+"-tmp-")
	if err != nil {
		return fi, errors.WithStack(err)
	}

	defer func(f *os.File) {
		if err != nil {
			_ = f.Close() // Double Close is harmless.
			_ = os.Remove(f.Name())
		}
	}(f)

	wbytes, err := io.Copy(f, &ctxReader{ctx: ctx, rd: rd})
	if err != nil {
		return fi, errors.WithStack(err)
	}
	// sanity check
	if size >= 0 && wbytes != size {
		return fi, errors.Errorf("wrote %d bytes instead of the expected %d bytes", wbytes, size)
	}

	err = f.Sync()
	syncNotSup := syncUnsupported(err)
	if err != nil && !syncNotSup {
		return fi, errors.WithStack(err)
	}

	// Close, then rename. Windows doesn't like the reverse order.
	if err = f.Close(); err != nil {
		return fi, errors.WithStack(err)
	}
	if err = os.Rename(f.Name(), finalname); err != nil {
		return fi, errors.WithStack(err)
	}

	// Now sync the directory to commit the Rename.
	if !syncNotSup {
		if err = fsyncDir(b.Path); err != nil {
			return fi, errors.WithStack(err)
		}
	}

	// some filesystems don't allow the chmod call
	err = setFileReadonly(finalname, 0600)
	if err != nil && !os.IsPermission(err) {
		return fi, errors.WithStack(err)
	}

	return backend.FileInfo{Name: name, Size: wbytes, ID: finalname}, nil
}

// Close does nothing.
func (b *Local) Close() error {
	return nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	rd  io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.rd.Read(p)
}
