package test

import (
	"fmt"
	"os"
	"strconv"
)

// Knobs for the test suites, read from PUSHBACK_TEST_* environment variables.
var (
	TestCleanupTempDirs = envBool("PUSHBACK_TEST_CLEANUP", true)
	TestTempDir         = envString("PUSHBACK_TEST_TMPDIR", "")
	TestPassword        = envString("PUSHBACK_TEST_PASSWORD", "geheim")
)

func envString(name, fallback string) string {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	v := envString(name, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: %v\n", name, v, err)
		return fallback
	}
	return b
}
