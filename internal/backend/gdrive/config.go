package gdrive

import (
	"path"
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Config contains all configuration necessary to upload to Google Drive. The
// credentials are obtained interactively, see auth.LocalWebserver.
type Config struct {
	// Folder is a slash separated path below My Drive, empty for the root.
	Folder string
}

// NewConfig returns a new Config with the default values filled in.
func NewConfig() Config {
	return Config{}
}

// ParseConfig parses the string s and extracts the drive config. The
// supported configuration format is drive:[folder/subfolder].
func ParseConfig(s string) (*Config, error) {
	folder, ok := strings.CutPrefix(s, "drive:")
	if !ok {
		return nil, errors.New("drive: invalid format, expected drive:[folder]")
	}

	folder = strings.Trim(path.Clean("/"+folder), "/")

	cfg := NewConfig()
	cfg.Folder = folder
	return &cfg, nil
}
