package test

import (
	"testing"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/test"
)

// Suite runs the common backend tests against one backend implementation.
type Suite[C any] struct {
	// Config is set from NewConfig by RunTests.
	Config C

	// NewConfig returns the config of a fresh, empty remote.
	NewConfig func() (C, error)

	// Open connects to the backend described by cfg.
	Open func(cfg C) (backend.Backend, error)

	// Load returns the content of the object called name, to verify uploads.
	Load func(cfg C, name string) ([]byte, error)

	// Cleanup, if set, removes the remote after the tests passed.
	Cleanup func(cfg C) error
}

// RunTests executes every test of the suite as a subtest of t.
func (s *Suite[C]) RunTests(t *testing.T) {
	cfg, err := s.NewConfig()
	if err != nil {
		t.Fatal(err)
	}
	s.Config = cfg

	for _, tc := range []struct {
		name string
		fn   func(*testing.T)
	}{
		{"Location", s.TestLocation},
		{"Save", s.TestSave},
		{"SaveUnknownSize", s.TestSaveUnknownSize},
		{"SaveCanceled", s.TestSaveCanceled},
	} {
		t.Run(tc.name, tc.fn)
	}

	if s.Cleanup == nil || t.Failed() {
		return
	}

	if !test.TestCleanupTempDirs {
		t.Logf("leaving remote in place, cleanup is disabled")
		return
	}

	if err := s.Cleanup(s.Config); err != nil {
		t.Fatal(err)
	}
}

func (s *Suite[C]) open(t testing.TB) backend.Backend {
	t.Helper()
	be, err := s.Open(s.Config)
	test.OK(t, err)
	return be
}

func (s *Suite[C]) close(t testing.TB, be backend.Backend) {
	t.Helper()
	test.OK(t, be.Close())
}
