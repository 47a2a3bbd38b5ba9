package sftp

import (
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Config names the sftp server and the directory artifacts are stored in.
type Config struct {
	User, Host, Port, Path string

	// Command replaces the ssh invocation, Args are appended to it.
	Command string
	Args    string
}

// ParseConfig accepts sftp://user@host[:port]/dir and sftp:user@host:dir.
// The directory is cleaned, a leading slash makes it absolute, e.g.
// sftp://host//srv/backup or sftp:host:/srv/backup.
func ParseConfig(s string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	switch {
	case strings.HasPrefix(s, "sftp://"):
		cfg, err = parseURL(s)
	case strings.HasPrefix(s, "sftp:"):
		cfg, err = parseShort(strings.TrimPrefix(s, "sftp:"))
	default:
		return nil, errors.New(`invalid format, does not start with "sftp:"`)
	}
	if err != nil {
		return nil, err
	}

	cfg.Path = path.Clean(cfg.Path)
	if strings.HasPrefix(cfg.Path, "~") {
		return nil, errors.Fatal("sftp path starts with the tilde (~) character, most servers do not expand it.\nUse a relative directory instead, it is usually relative to the home directory.")
	}

	return cfg, nil
}

func parseURL(s string) (*Config, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if u.Path == "" {
		return nil, errors.Errorf("invalid remote %q, no directory specified", s)
	}

	cfg := &Config{
		Host: u.Hostname(),
		Port: u.Port(),
		// strip the separator between host and path
		Path: u.Path[1:],
	}
	if u.User != nil {
		cfg.User = u.User.Username()
	}
	return cfg, nil
}

// parseShort handles the scp like user@host:dir form. The user name may
// contain an @ itself.
func parseShort(s string) (*Config, error) {
	host, dir, ok := strings.Cut(s, ":")
	if !ok {
		return nil, errors.New("sftp: invalid format, hostname or path not found")
	}

	cfg := &Config{Host: host, Path: dir}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		cfg.User, cfg.Host = host[:i], host[i+1:]
	}
	return cfg, nil
}

// ApplyEnvironment fills Command and Args from prefix+SFTP_COMMAND and
// prefix+SFTP_ARGS unless they are set.
func (cfg *Config) ApplyEnvironment(prefix string) {
	if cfg.Command == "" {
		cfg.Command = os.Getenv(prefix + "SFTP_COMMAND")
	}

	if cfg.Args == "" {
		cfg.Args = os.Getenv(prefix + "SFTP_ARGS")
	}
}
