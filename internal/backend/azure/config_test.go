package azure

import (
	"testing"

	"github.com/pushback/pushback/internal/backend/test"
	rtest "github.com/pushback/pushback/internal/test"
)

var configTests = []test.ConfigTestData[Config]{
	{S: "azure:container-name:/", Cfg: Config{
		Container: "container-name",
		Prefix:    "",
	}},
	{S: "azure:container-name:/prefix/directory", Cfg: Config{
		Container: "container-name",
		Prefix:    "prefix/directory",
	}},
	{S: "azure:container-name:/prefix/directory/", Cfg: Config{
		Container: "container-name",
		Prefix:    "prefix/directory",
	}},
}

func TestParseConfig(t *testing.T) {
	test.ParseConfigTester(t, ParseConfig, configTests)
}

func TestParseConfigInvalid(t *testing.T) {
	test.ParseConfigInvalidTester(t, ParseConfig, []string{"azure:container", "azure::/prefix", "gs:bucket:/"})
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv("AZURE_ACCOUNT_NAME", "account")
	t.Setenv("AZURE_ACCOUNT_KEY", "key")
	t.Setenv("AZURE_ACCOUNT_SAS", "")
	t.Setenv("AZURE_ENDPOINT_SUFFIX", "core.chinacloudapi.cn")
	t.Setenv("AZURE_FORCE_CLI_CREDENTIAL", "true")

	cfg := Config{Container: "c"}
	cfg.ApplyEnvironment()
	rtest.Equals(t, Config{
		AccountName:        "account",
		AccountKey:         "key",
		EndpointSuffix:     "core.chinacloudapi.cn",
		ForceCliCredential: true,
		Container:          "c",
	}, cfg)
}
