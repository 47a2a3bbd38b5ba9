package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/local"
	"github.com/pushback/pushback/internal/backend/test"
	rtest "github.com/pushback/pushback/internal/test"
)

func newTestSuite(t testing.TB) *test.Suite[local.Config] {
	return &test.Suite[local.Config]{
		NewConfig: func() (local.Config, error) {
			dir := rtest.TempDir(t)
			t.Logf("create new backend at %v", dir)

			cfg := local.NewConfig()
			cfg.Path = filepath.Join(dir, "uploads")
			return cfg, nil
		},

		Open: func(cfg local.Config) (backend.Backend, error) {
			return local.Open(context.TODO(), cfg)
		},

		Load: func(cfg local.Config, name string) ([]byte, error) {
			return os.ReadFile(filepath.Join(cfg.Path, name))
		},
	}
}

func TestBackend(t *testing.T) {
	newTestSuite(t).RunTests(t)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := rtest.TempDir(t)
	be, err := local.Open(context.TODO(), local.Config{Path: dir})
	rtest.OK(t, err)

	_, err = be.Save(context.TODO(), "a.tar.gz", strings.NewReader("foo"), 4)
	rtest.Assert(t, err != nil, "size mismatch not detected")

	_, err = be.Save(context.TODO(), "b.tar.gz", strings.NewReader("bar"), 3)
	rtest.OK(t, err)

	rtest.Equals(t, []string{"b.tar.gz"}, rtest.DirEntries(t, dir))
}

func TestSaveInvalidName(t *testing.T) {
	be, err := local.Open(context.TODO(), local.Config{Path: rtest.TempDir(t)})
	rtest.OK(t, err)

	for _, name := range []string{"", "../escape.tar.gz", "sub/file.tar.gz"} {
		_, err = be.Save(context.TODO(), name, strings.NewReader("x"), 1)
		rtest.Assert(t, err != nil, "name %q accepted", name)
	}
}
