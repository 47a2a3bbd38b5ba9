// Package sftp provides a storage backend which talks to an sftp server
// through an ssh subprocess.
package sftp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// SFTP is a backend in a directory accessed via SFTP.
type SFTP struct {
	c *sftp.Client
	p string

	cmd    *exec.Cmd
	result <-chan error

	Config
}

var _ backend.Backend = &SFTP{}

func NewFactory() location.Factory {
	return location.NewLocalBackendFactory("sftp", ParseConfig, Open)
}

func startClient(cfg Config) (*SFTP, error) {
	program, args, err := buildSSHCommand(cfg)
	if err != nil {
		return nil, err
	}

	debug.Log("start client %v %v", program, args)
	// Connect to a remote host and request the sftp subsystem via the 'ssh'
	// command.  This assumes that passwordless login is correctly configured.
	cmd := exec.Command(program, args...)

	// prefix the errors with the program name
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StderrPipe")
	}

	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			fmt.Fprintf(os.Stderr, "subprocess %v: %v\n", program, sc.Text())
		}
	}()

	// get stdin and stdout
	wr, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StdinPipe")
	}
	rd, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StdoutPipe")
	}

	if err := backend.StartBackground(cmd); err != nil {
		return nil, err
	}

	// wait in a different goroutine
	ch := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		debug.Log("ssh command exited, err %v", err)
		ch <- errors.Wrap(err, "ssh command exited")
	}()

	// open the SFTP session
	client, err := sftp.NewClientPipe(rd, wr)
	if err != nil {
		return nil, errors.Errorf("unable to start the sftp session, error: %v", err)
	}

	return &SFTP{c: client, cmd: cmd, result: ch}, nil
}

// clientError returns an error if the client has exited. Otherwise, nil is
// returned immediately.
func (r *SFTP) clientError() error {
	select {
	case err := <-r.result:
		debug.Log("client has exited with err %v", err)
		return err
	default:
	}

	return nil
}

// Open opens an sftp backend as described by the config by running
// "ssh" with the appropriate arguments (or cfg.Command, if set).
func Open(_ context.Context, cfg Config) (*SFTP, error) {
	cfg.ApplyEnvironment("PUSHBACK_")
	debug.Log("open backend with config %#v", cfg)

	r, err := startClient(cfg)
	if err != nil {
		debug.Log("unable to start program: %v", err)
		return nil, err
	}

	r.Config = cfg
	r.p = cfg.Path
	return r, nil
}

func buildSSHCommand(cfg Config) (cmd string, args []string, err error) {
	if cfg.Command != "" {
		if cfg.Args != "" {
			return "", nil, errors.Fatal("SFTP_COMMAND and SFTP_ARGS cannot be used together")
		}

		return backend.SplitShellArgs(cfg.Command)
	}

	cmd = "ssh"

	host, port := cfg.Host, cfg.Port

	args = []string{host}
	if port != "" {
		args = append(args, "-p", port)
	}
	if cfg.User != "" {
		args = append(args, "-l", cfg.User)
	}

	if cfg.Args != "" {
		_, a, err := backend.SplitShellArgs(cfg.Args)
		if err != nil {
			return "", nil, err
		}

		args = append(args, a...)
	}

	args = append(args, "-s", "sftp")
	return cmd, args, nil
}

// Location returns this backend's location (the directory name).
func (r *SFTP) Location() string {
	return r.p
}

// Save stores the content of rd in the file name below the directory. The
// directory is created if needed.
func (r *SFTP) Save(ctx context.Context, name string, rd io.Reader, size int64) (fi backend.FileInfo, err error) {
	debug.Log("Save %v", name)
	if err := r.clientError(); err != nil {
		return fi, err
	}

	if name == "" || strings.Contains(name, "/") {
		return fi, errors.Errorf("invalid file name %q", name)
	}

	filename := path.Join(r.p, name)

	if err := r.c.MkdirAll(r.p); err != nil {
		return fi, errors.Wrapf(err, "MkdirAll(%v)", r.p)
	}

	f, err := r.c.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
	if err != nil {
		return fi, errors.Wrap(err, "OpenFile")
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			// remove incomplete file
			_ = r.c.Remove(filename)
		}
	}()

	// save data
	wbytes, err := f.ReadFrom(&ctxReader{ctx: ctx, rd: rd})
	if err != nil {
		return fi, errors.Wrap(err, "Write")
	}

	// sanity check
	if size >= 0 && wbytes != size {
		return fi, errors.Errorf("wrote %d bytes instead of the expected %d bytes", wbytes, size)
	}

	if err = f.Close(); err != nil {
		return fi, errors.Wrap(err, "Close")
	}

	if err = r.c.Chmod(filename, 0600); err != nil {
		return fi, errors.Wrap(err, "Chmod")
	}

	return backend.FileInfo{Name: name, Size: wbytes, ID: filename}, nil
}

const closeTimeout = 2 * time.Second

// Close closes the sftp connection and terminates the underlying command.
func (r *SFTP) Close() error {
	debug.Log("Close")
	if r == nil {
		return nil
	}

	err := r.c.Close()
	debug.Log("Close returned error %v", err)

	if r.cmd == nil {
		return err
	}

	// wait for closeTimeout before killing the process
	select {
	case err := <-r.result:
		return err
	case <-time.After(closeTimeout):
	}

	if err := r.cmd.Process.Kill(); err != nil {
		return err
	}

	// get the error, but ignore it
	<-r.result
	return nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	rd  io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.rd.Read(p)
}
