//go:build unix

package archiver

import "golang.org/x/sys/unix"

const openNoFollow = unix.O_NOFOLLOW
