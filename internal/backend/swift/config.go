package swift

import (
	"os"
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Config describes a swift container and the credentials for it. Most
// fields are only read from the OS_* environment variables.
type Config struct {
	Container string
	Prefix    string

	AuthURL string
	Region  string

	UserName string
	UserID   string
	APIKey   string
	Domain   string
	DomainID string

	Tenant         string
	TenantID       string
	TenantDomain   string
	TenantDomainID string
	TrustID        string

	ApplicationCredentialID     string
	ApplicationCredentialName   string
	ApplicationCredentialSecret string

	// StorageURL and AuthToken skip authentication altogether.
	StorageURL string
	AuthToken  string

	DefaultContainerPolicy string
}

// ParseConfig parses a location of the form swift:container:/prefix.
func ParseConfig(s string) (*Config, error) {
	rest, ok := strings.CutPrefix(s, "swift:")
	if !ok {
		return nil, errors.New("invalid URL, expected: swift:container-name:/[prefix]")
	}

	container, prefix, found := strings.Cut(rest, ":")
	switch {
	case container == "":
		return nil, errors.Errorf("container name is empty")
	case !found || prefix == "":
		return nil, errors.Errorf("prefix is empty")
	case !strings.HasPrefix(prefix, "/"):
		return nil, errors.Errorf("prefix does not start with slash (/)")
	}

	return &Config{
		Container: container,
		Prefix:    strings.Trim(prefix, "/"),
	}, nil
}

// environment lists the variables read by ApplyEnvironment. Earlier entries
// win when several variables map to the same field, e.g. OS_USERNAME over
// the v1 ST_USER.
var environment = []struct {
	name  string
	field func(*Config) *string
}{
	{"OS_AUTH_URL", func(c *Config) *string { return &c.AuthURL }},
	{"ST_AUTH", func(c *Config) *string { return &c.AuthURL }},
	{"OS_REGION_NAME", func(c *Config) *string { return &c.Region }},

	{"OS_USERNAME", func(c *Config) *string { return &c.UserName }},
	{"ST_USER", func(c *Config) *string { return &c.UserName }},
	{"OS_USER_ID", func(c *Config) *string { return &c.UserID }},
	{"OS_PASSWORD", func(c *Config) *string { return &c.APIKey }},
	{"ST_KEY", func(c *Config) *string { return &c.APIKey }},
	{"OS_USER_DOMAIN_NAME", func(c *Config) *string { return &c.Domain }},
	{"OS_USER_DOMAIN_ID", func(c *Config) *string { return &c.DomainID }},

	{"OS_PROJECT_NAME", func(c *Config) *string { return &c.Tenant }},
	{"OS_TENANT_NAME", func(c *Config) *string { return &c.Tenant }},
	{"OS_TENANT_ID", func(c *Config) *string { return &c.TenantID }},
	{"OS_PROJECT_DOMAIN_NAME", func(c *Config) *string { return &c.TenantDomain }},
	{"OS_PROJECT_DOMAIN_ID", func(c *Config) *string { return &c.TenantDomainID }},
	{"OS_TRUST_ID", func(c *Config) *string { return &c.TrustID }},

	{"OS_APPLICATION_CREDENTIAL_ID", func(c *Config) *string { return &c.ApplicationCredentialID }},
	{"OS_APPLICATION_CREDENTIAL_NAME", func(c *Config) *string { return &c.ApplicationCredentialName }},
	{"OS_APPLICATION_CREDENTIAL_SECRET", func(c *Config) *string { return &c.ApplicationCredentialSecret }},

	{"OS_STORAGE_URL", func(c *Config) *string { return &c.StorageURL }},
	{"OS_AUTH_TOKEN", func(c *Config) *string { return &c.AuthToken }},

	{"SWIFT_DEFAULT_CONTAINER_POLICY", func(c *Config) *string { return &c.DefaultContainerPolicy }},
}

// ApplyEnvironment fills empty fields from the environment. Variable names
// are prefixed with prefix.
func (cfg *Config) ApplyEnvironment(prefix string) {
	for _, v := range environment {
		field := v.field(cfg)
		if *field == "" {
			*field = os.Getenv(prefix + v.name)
		}
	}
}
