package test

import (
	"testing"

	"github.com/pushback/pushback/internal/test"
)

// ConfigTestData is one case for ParseConfigTester.
type ConfigTestData[C comparable] struct {
	S   string
	Cfg C
}

// ParseConfigTester runs parser on every S and compares the result to Cfg.
func ParseConfigTester[C comparable](t *testing.T, parser func(s string) (*C, error), tests []ConfigTestData[C]) {
	t.Helper()
	for _, tc := range tests {
		t.Run(tc.S, func(t *testing.T) {
			cfg, err := parser(tc.S)
			test.OK(t, err)
			test.Equals(t, tc.Cfg, *cfg)
		})
	}
}

// ParseConfigInvalidTester checks that parser rejects every string in invalid.
func ParseConfigInvalidTester[C any](t *testing.T, parser func(s string) (*C, error), invalid []string) {
	t.Helper()
	for _, s := range invalid {
		t.Run(s, func(t *testing.T) {
			_, err := parser(s)
			test.Assert(t, err != nil, "invalid config %q did not return an error", s)
		})
	}
}
