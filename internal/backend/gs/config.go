package gs

import (
	"os"
	"path"
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Config contains all configuration necessary to connect to a Google Cloud
// Storage bucket. Google's default application credentials are used to
// acquire an access token unless GOOGLE_ACCESS_TOKEN is set.
type Config struct {
	ProjectID string
	Bucket    string
	Prefix    string
}

// NewConfig returns a new Config with the default values filled in.
func NewConfig() Config {
	return Config{}
}

// ParseConfig parses the string s and extracts the gcs config. The
// supported configuration format is gs:bucketName:/[prefix].
func ParseConfig(s string) (*Config, error) {
	s, ok := strings.CutPrefix(s, "gs:")
	if !ok {
		return nil, errors.New("gs: invalid format")
	}

	// use the first entry of the path as the bucket name and the
	// remainder as prefix
	bucket, prefix, ok := strings.Cut(s, ":")
	if !ok || bucket == "" {
		return nil, errors.New("gs: invalid format: bucket name or path not found")
	}

	prefix = strings.TrimPrefix(path.Clean(prefix), "/")
	if prefix == "." {
		prefix = ""
	}

	cfg := NewConfig()
	cfg.Bucket = bucket
	cfg.Prefix = prefix
	return &cfg, nil
}

// ApplyEnvironment saves values from the environment to the config.
func (cfg *Config) ApplyEnvironment() {
	if cfg.ProjectID == "" {
		cfg.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
}
