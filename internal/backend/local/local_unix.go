//go:build unix

package local

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/pushback/pushback/internal/errors"
)

// fsyncDir makes the rename of a finished artifact in dir durable. File
// systems which cannot sync directories are ignored.
func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}

	err = unix.Fsync(int(d.Fd()))
	switch err {
	case unix.ENOTSUP, unix.ENOENT, unix.EINVAL:
		err = nil
	}

	if cerr := d.Close(); err == nil {
		err = cerr
	}
	return err
}

// syncUnsupported matches the errors returned by file systems without
// fsync. macOS reports ENOTTY on network shares.
func syncUnsupported(err error) bool {
	return err != nil && (errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.ENOTTY))
}

// setFileReadonly drops the write bits of mode on f.
func setFileReadonly(f string, mode os.FileMode) error {
	return unix.Chmod(f, uint32(mode.Perm()&^0222))
}
