package b2

import (
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Config names a B2 bucket and the key pair used to reach it.
type Config struct {
	AccountID string
	Key       string
	Bucket    string
	Prefix    string
}

var validBucket = regexp.MustCompile("^[a-zA-Z0-9-]+$")

// validateBucket applies Backblaze's naming rules: 6 to 50 characters of
// letters, digits and dashes.
func validateBucket(name string) error {
	switch {
	case name == "":
		return errors.New("bucket name is empty")
	case len(name) < 6:
		return errors.New("bucket name is too short")
	case len(name) > 50:
		return errors.New("bucket name is too long")
	case !validBucket.MatchString(name):
		return errors.New("bucket name contains invalid characters, allowed are: a-z, 0-9, dash (-)")
	}
	return nil
}

// ParseConfig parses b2:bucket-name[:path].
func ParseConfig(s string) (*Config, error) {
	rest, ok := strings.CutPrefix(s, "b2:")
	if !ok {
		return nil, errors.New("invalid format, want: b2:bucket-name[:path]")
	}

	bucket, prefix, _ := strings.Cut(rest, ":")
	if bucket == "" {
		return nil, errors.New("bucket name not found")
	}
	if err := validateBucket(bucket); err != nil {
		return nil, err
	}

	if prefix != "" {
		prefix = strings.TrimPrefix(path.Clean(prefix), "/")
	}
	return &Config{Bucket: bucket, Prefix: prefix}, nil
}

// ApplyEnvironment fills the account id and key from the B2_ACCOUNT_*
// variables, each looked up with prefix prepended.
func (cfg *Config) ApplyEnvironment(prefix string) {
	if cfg.AccountID == "" {
		cfg.AccountID = os.Getenv(prefix + "B2_ACCOUNT_ID")
	}
	if cfg.Key == "" {
		cfg.Key = os.Getenv(prefix + "B2_ACCOUNT_KEY")
	}
}
