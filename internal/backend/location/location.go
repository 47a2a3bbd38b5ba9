// Package location parses remote location strings and opens the matching
// backend.
package location

import (
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Default is used when no remote is configured.
const Default = "drive:"

// Location is a parsed remote: the scheme selects the backend factory,
// Config is the value its ParseConfig returned.
type Location struct {
	Scheme string
	Config interface{}
}

// isPath reports whether s is unambiguously a local path: relative to the
// parent directory, rooted, or a Windows drive path such as C:\backup.
func isPath(s string) bool {
	for _, prefix := range []string{"../", `..\`, "/", `\`} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return len(s) >= 3 && isDriveLetter(s[0]) && s[1] == ':' && (s[2] == '\\' || s[2] == '/')
}

func isDriveLetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// Parse extracts the remote from s. The empty string selects Default. If s
// starts with a registered scheme followed by a colon, that backend parses
// the rest. Anything else is taken as a local directory.
func Parse(registry *Registry, s string) (Location, error) {
	if s == "" {
		s = Default
	}

	scheme, _, _ := strings.Cut(s, ":")
	if factory := registry.Lookup(scheme); factory != nil {
		cfg, err := factory.ParseConfig(s)
		if err != nil {
			return Location{}, err
		}
		return Location{Scheme: scheme, Config: cfg}, nil
	}

	if !isPath(s) && strings.ContainsRune(s, ':') {
		return Location{}, errors.Fatalf("invalid remote %q\nIf the remote is a local directory, you need to add a `local:` prefix", s)
	}

	factory := registry.Lookup("local")
	if factory == nil {
		return Location{}, errors.New("local backend not available")
	}

	cfg, err := factory.ParseConfig("local:" + s)
	if err != nil {
		return Location{}, err
	}
	return Location{Scheme: "local", Config: cfg}, nil
}
