package backend

import "github.com/pushback/pushback/internal/archiver"

// ContentType returns the media type remotes store the artifact name with.
// Encrypted artifacts are opaque.
func ContentType(name string) string {
	if archiver.IsEncrypted(name) {
		return "application/octet-stream"
	}
	return "application/gzip"
}
