package sftp

import (
	"testing"

	"github.com/pushback/pushback/internal/backend/test"
)

func TestParseConfig(t *testing.T) {
	test.ParseConfigTester(t, ParseConfig, []test.ConfigTestData[Config]{
		{S: "sftp://backup@nas/artifacts", Cfg: Config{User: "backup", Host: "nas", Path: "artifacts"}},
		{S: "sftp://nas//srv/artifacts", Cfg: Config{Host: "nas", Path: "/srv/artifacts"}},
		{S: "sftp://backup@nas:2222//srv/artifacts", Cfg: Config{User: "backup", Host: "nas", Port: "2222", Path: "/srv/artifacts"}},
		{S: "sftp://nas/a/../b//c", Cfg: Config{Host: "nas", Path: "b/c"}},
		{S: "sftp://backup@[::1]:22/artifacts", Cfg: Config{User: "backup", Host: "::1", Port: "22", Path: "artifacts"}},

		{S: "sftp:backup@nas:/srv/artifacts", Cfg: Config{User: "backup", Host: "nas", Path: "/srv/artifacts"}},
		{S: "sftp:backup@corp@nas:/srv", Cfg: Config{User: "backup@corp", Host: "nas", Path: "/srv"}},
		{S: "sftp:nas:../shared", Cfg: Config{Host: "nas", Path: "../shared"}},
		{S: "sftp:nas:dir:with:colons", Cfg: Config{Host: "nas", Path: "dir:with:colons"}},
	})
}

func TestParseConfigInvalid(t *testing.T) {
	test.ParseConfigInvalidTester(t, ParseConfig, []string{
		"sftp://nas:dir",
		"sftp:nas",
		"sftp:nas:~/artifacts",
		"sftp://nas",
		"ftp://nas/dir",
	})
}
