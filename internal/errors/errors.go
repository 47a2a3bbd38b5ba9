// Package errors wraps github.com/pkg/errors so that every error created by
// pushback carries a stack trace, and adds the few classifications the backup
// pipeline needs to decide between warning and aborting.
package errors

import (
	stderrors "errors"
	"io/fs"

	"github.com/pkg/errors"
)

// New creates a new error with a stack trace.
var New = errors.New

// Errorf creates an error from a format string and values.
var Errorf = errors.Errorf

// Wrap annotates an error returned by a library or the operating system. If
// err is nil, Wrap returns nil.
var Wrap = errors.Wrap

// Wrapf annotates err with the format specifier. If err is nil, Wrapf returns
// nil.
var Wrapf = errors.Wrapf

// WithStack annotates err with a stack trace at the point WithStack was called.
var WithStack = errors.WithStack

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// Join returns an error that wraps the given errors, nil values are dropped.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// Unwrap returns the error wrapped by err, or nil.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// IsPermission reports whether err was caused by missing access rights on
// the local filesystem.
func IsPermission(err error) bool {
	return err != nil && stderrors.Is(err, fs.ErrPermission)
}

// IsNotExist reports whether err was caused by a missing file or directory.
func IsNotExist(err error) bool {
	return err != nil && stderrors.Is(err, fs.ErrNotExist)
}
