package azure

import (
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Config contains all configuration necessary to connect to an azure compatible
// server.
type Config struct {
	AccountName        string
	AccountSAS         string
	AccountKey         string
	ForceCliCredential bool
	EndpointSuffix     string
	Container          string
	Prefix             string
}

// NewConfig returns a new Config with the default values filled in.
func NewConfig() Config {
	return Config{}
}

// ParseConfig parses the string s and extracts the azure config. The
// configuration format is azure:containerName:/[prefix].
func ParseConfig(s string) (*Config, error) {
	s, ok := strings.CutPrefix(s, "azure:")
	if !ok {
		return nil, errors.New("azure: invalid format")
	}

	// use the first entry of the path as the bucket name and the
	// remainder as prefix
	container, prefix, ok := strings.Cut(s, ":")
	if !ok || container == "" {
		return nil, errors.New("azure: invalid format: bucket name or path not found")
	}

	prefix = strings.TrimPrefix(path.Clean(prefix), "/")
	if prefix == "." {
		prefix = ""
	}

	cfg := NewConfig()
	cfg.Container = container
	cfg.Prefix = prefix
	return &cfg, nil
}

// ApplyEnvironment saves values from the environment to the config.
func (cfg *Config) ApplyEnvironment() {
	if cfg.AccountName == "" {
		cfg.AccountName = os.Getenv("AZURE_ACCOUNT_NAME")
	}

	if cfg.AccountKey == "" {
		cfg.AccountKey = os.Getenv("AZURE_ACCOUNT_KEY")
	}

	if cfg.AccountSAS == "" {
		cfg.AccountSAS = os.Getenv("AZURE_ACCOUNT_SAS")
	}

	if cfg.EndpointSuffix == "" {
		cfg.EndpointSuffix = os.Getenv("AZURE_ENDPOINT_SUFFIX")
	}

	if !cfg.ForceCliCredential {
		cfg.ForceCliCredential, _ = strconv.ParseBool(os.Getenv("AZURE_FORCE_CLI_CREDENTIAL"))
	}
}
