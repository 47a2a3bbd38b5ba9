package s3

import (
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Config describes a bucket on an S3 compatible server.
type Config struct {
	// Endpoint is a host[:port] or an AWS region name.
	Endpoint string
	UseHTTP  bool
	Bucket   string
	Prefix   string

	KeyID, Secret string
	Region        string

	// BucketLookup is one of "auto", "dns" or "path".
	BucketLookup string
	StorageClass string
}

// ParseConfig accepts s3:host/bucket/prefix, s3://host/bucket/prefix and
// s3:http(s)://host/bucket/prefix. The host may be a region name.
func ParseConfig(s string) (*Config, error) {
	rest, ok := strings.CutPrefix(s, "s3:")
	if !ok {
		return nil, errors.New("s3: invalid format")
	}

	if strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://") {
		u, err := url.Parse(rest)
		if err != nil {
			return nil, errors.Wrap(err, "url.Parse")
		}
		if u.Path == "" {
			return nil, errors.New("s3: bucket name not found")
		}
		bucket, prefix, _ := strings.Cut(u.Path[1:], "/")
		return newConfig(u.Host, bucket, prefix, u.Scheme == "http")
	}

	rest = strings.TrimPrefix(rest, "//")
	endpoint, p, _ := strings.Cut(rest, "/")
	bucket, prefix, _ := strings.Cut(p, "/")
	return newConfig(endpoint, bucket, prefix, false)
}

func newConfig(endpoint, bucket, prefix string, useHTTP bool) (*Config, error) {
	if endpoint == "" || bucket == "" {
		return nil, errors.New("s3: invalid format, host/region or bucket name not found")
	}

	cfg := &Config{
		Endpoint: endpoint,
		UseHTTP:  useHTTP,
		Bucket:   bucket,
	}
	if prefix != "" {
		cfg.Prefix = path.Clean(prefix)
	}
	return cfg, nil
}

// ApplyEnvironment fills the credentials and region from the AWS_*
// variables unless they are already set.
func (cfg *Config) ApplyEnvironment() {
	for _, v := range []struct {
		field *string
		name  string
	}{
		{&cfg.KeyID, "AWS_ACCESS_KEY_ID"},
		{&cfg.Secret, "AWS_SECRET_ACCESS_KEY"},
		{&cfg.Region, "AWS_DEFAULT_REGION"},
	} {
		if *v.field == "" {
			*v.field = os.Getenv(v.name)
		}
	}
}
