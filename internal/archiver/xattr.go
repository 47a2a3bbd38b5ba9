package archiver

import (
	"strings"
	"syscall"

	"github.com/pkg/xattr"

	"github.com/pushback/pushback/internal/errors"
)

const xattrPrefix = "SCHILY.xattr."

// readXattrs returns the extended attributes of filename as PAX records. It
// does not follow symlinks.
func readXattrs(filename string) (map[string]string, error) {
	if !xattr.XATTR_SUPPORTED {
		return nil, nil
	}

	names, err := xattr.LList(filename)
	if err != nil {
		return nil, handleXattrErr(err)
	}

	var records map[string]string
	for _, name := range names {
		value, err := xattr.LGet(filename, name)
		if err != nil {
			return records, handleXattrErr(err)
		}

		if records == nil {
			records = make(map[string]string, len(names))
		}
		records[xattrPrefix+name] = string(value)
	}

	return records, nil
}

// writeXattrs restores the extended attributes found in the PAX records.
func writeXattrs(filename string, records map[string]string) error {
	if !xattr.XATTR_SUPPORTED {
		return nil
	}

	for key, value := range records {
		name, ok := strings.CutPrefix(key, xattrPrefix)
		if !ok {
			continue
		}

		if err := handleXattrErr(xattr.LSet(filename, name, []byte(value))); err != nil {
			return err
		}
	}

	return nil
}

func handleXattrErr(err error) error {
	switch e := err.(type) {
	case nil:
		return nil

	case *xattr.Error:
		// file systems without xattr support report one of these
		if e.Err == syscall.ENOTSUP || e.Err == syscall.EOPNOTSUPP || e.Err == xattr.ENOATTR {
			return nil
		}
		return errors.WithStack(e)

	default:
		return errors.WithStack(e)
	}
}
