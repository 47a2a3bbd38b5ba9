// Package backend defines the interface implemented by the remotes an
// artifact can be uploaded to, plus the plumbing they share.
package backend

import (
	"context"
	"io"
)

// FileInfo describes an object after it was stored on a remote.
type FileInfo struct {
	Name string
	Size int64
	// ID is the remote identifier of the object, for remotes without
	// separate identifiers it is the full object path.
	ID string
}

// Backend stores artifacts on a remote.
type Backend interface {
	// Location returns a string that describes the remote without any
	// credentials.
	Location() string

	// Save stores the data from rd as an object called name. size is the
	// number of bytes rd yields, or -1 when unknown. Save must not retry.
	Save(ctx context.Context, name string, rd io.Reader, size int64) (FileInfo, error)

	// Close releases all resources held by the backend.
	Close() error
}
