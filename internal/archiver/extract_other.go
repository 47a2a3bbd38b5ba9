//go:build !unix

package archiver

const openNoFollow = 0
