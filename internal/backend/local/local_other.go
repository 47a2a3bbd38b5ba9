//go:build !unix

package local

import "os"

func fsyncDir(string) error { return nil }

func syncUnsupported(err error) bool { return false }

// setFileReadonly leaves the mode alone, read-only files cannot be deleted
// on Windows.
func setFileReadonly(string, os.FileMode) error { return nil }
