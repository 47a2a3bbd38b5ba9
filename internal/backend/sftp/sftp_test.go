package sftp

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/sftp"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/test"
	rtest "github.com/pushback/pushback/internal/test"
)

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// newInProcess connects a client to an sftp server running in a goroutine
// which serves the local filesystem.
func newInProcess(t testing.TB, cfg Config) *SFTP {
	clientRd, serverWr := io.Pipe()
	serverRd, clientWr := io.Pipe()

	srv, err := sftp.NewServer(pipeConn{Reader: serverRd, WriteCloser: serverWr})
	rtest.OK(t, err)
	// the client's receive loop only ends once the server closes its side
	go func() {
		_ = srv.Serve()
		_ = srv.Close()
	}()

	client, err := sftp.NewClientPipe(clientRd, clientWr)
	rtest.OK(t, err)

	t.Cleanup(func() {
		_ = srv.Close()
	})

	return &SFTP{c: client, p: cfg.Path, Config: cfg}
}

func TestBackend(t *testing.T) {
	suite := &test.Suite[Config]{
		NewConfig: func() (Config, error) {
			return Config{Host: "localhost", Path: filepath.ToSlash(filepath.Join(rtest.TempDir(t), "backups"))}, nil
		},
		Open: func(cfg Config) (backend.Backend, error) {
			return newInProcess(t, cfg), nil
		},
		Load: func(cfg Config, name string) ([]byte, error) {
			return os.ReadFile(filepath.Join(filepath.FromSlash(cfg.Path), name))
		},
	}
	suite.RunTests(t)
}

func TestCloseReturns(t *testing.T) {
	be := newInProcess(t, Config{Path: filepath.ToSlash(rtest.TempDir(t))})

	done := make(chan error, 1)
	go func() {
		done <- be.Close()
	}()

	select {
	case err := <-done:
		rtest.OK(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestSaveSizeMismatch(t *testing.T) {
	dir := rtest.TempDir(t)
	be := newInProcess(t, Config{Path: filepath.ToSlash(dir)})
	defer func() { rtest.OK(t, be.Close()) }()

	_, err := be.Save(context.TODO(), "a.tar.gz", strings.NewReader("foo"), 10)
	rtest.Assert(t, err != nil, "size mismatch not detected")
	rtest.Equals(t, []string{}, rtest.DirEntries(t, dir))
}

func TestSaveInvalidName(t *testing.T) {
	be := newInProcess(t, Config{Path: filepath.ToSlash(rtest.TempDir(t))})
	defer func() { rtest.OK(t, be.Close()) }()

	for _, name := range []string{"", "../x.tar.gz", "sub/x.tar.gz"} {
		_, err := be.Save(context.TODO(), name, strings.NewReader("x"), 1)
		rtest.Assert(t, err != nil, "name %q accepted", name)
	}
}

func TestOpenCommandFails(t *testing.T) {
	_, err := Open(context.TODO(), Config{Command: "/nonexistent/ssh-for-pushback-test"})
	rtest.Assert(t, err != nil, "missing command not detected")
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv("PUSHBACK_SFTP_COMMAND", "")
	t.Setenv("PUSHBACK_SFTP_ARGS", "-i /path/to/id_ed25519")

	cfg := Config{Host: "host"}
	cfg.ApplyEnvironment("PUSHBACK_")
	rtest.Equals(t, Config{Host: "host", Args: "-i /path/to/id_ed25519"}, cfg)
}
