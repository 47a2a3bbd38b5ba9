package local

import (
	"strings"

	"github.com/pushback/pushback/internal/errors"
)

// Config holds all information needed to store archives in a local directory.
type Config struct {
	Path string
}

// NewConfig returns a new config with default options applied.
func NewConfig() Config {
	return Config{}
}

// ParseConfig parses a local backend config.
func ParseConfig(s string) (*Config, error) {
	p, ok := strings.CutPrefix(s, "local:")
	if !ok {
		return nil, errors.New(`invalid format, prefix "local" not found`)
	}
	if p == "" {
		return nil, errors.New("local: directory is empty")
	}

	cfg := NewConfig()
	cfg.Path = p
	return &cfg, nil
}
