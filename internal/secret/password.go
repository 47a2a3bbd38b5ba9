// Package secret obtains the password used to encrypt artifacts.
package secret

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// Environment variables consulted when no flag is given.
const (
	EnvPassword     = "PUSHBACK_PASSWORD"
	EnvPasswordFile = "PUSHBACK_PASSWORD_FILE"
)

// Options select where the password comes from.
type Options struct {
	// File holds the password, BOM and surrounding whitespace are stripped.
	File string
	// Command is run through SplitShellArgs, its trimmed stdout is the password.
	Command string
	// Prompt asks on the terminal (or reads stdin) when no other source
	// yields a password.
	Prompt bool
}

// Source reads passwords according to Options. The zero value is usable
// and talks to the process' stdin and stderr.
type Source struct {
	Stdin  *os.File
	Stderr *os.File
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func (s Source) getenv(key string) string {
	if s.Getenv != nil {
		return s.Getenv(key)
	}
	return os.Getenv(key)
}

// Resolve returns the password, or the empty string when encryption was not
// requested by any source. The order is: command, file, environment, prompt.
func (s Source) Resolve(ctx context.Context, opts Options) (string, error) {
	if opts.File != "" && opts.Command != "" {
		return "", errors.Fatalf("Password file and command are mutually exclusive options")
	}

	if opts.Command != "" {
		return s.fromCommand(ctx, opts.Command)
	}

	if opts.File != "" {
		return FromFile(opts.File)
	}

	if pwd := s.getenv(EnvPassword); pwd != "" {
		debug.Log("using password from $%s", EnvPassword)
		return pwd, nil
	}

	if !opts.Prompt {
		return "", nil
	}

	return s.prompt(ctx)
}

func (s Source) fromCommand(ctx context.Context, command string) (string, error) {
	name, args, err := backend.SplitShellArgs(command)
	if err != nil {
		return "", errors.Fatalf("invalid password command: %v", err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = s.stderr()
	output, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "running password command %q", name)
	}

	pwd := strings.TrimSpace(string(output))
	if pwd == "" {
		return "", errors.Fatal("password command returned an empty password")
	}
	return pwd, nil
}

// FromFile loads a password from a file while stripping a BOM and converting
// the password to UTF-8.
func FromFile(filename string) (string, error) {
	data, err := readTextFile(filename)
	if errors.IsNotExist(err) {
		return "", errors.Fatalf("%s does not exist", filename)
	}
	if err != nil {
		return "", errors.Wrap(err, "ReadFile")
	}

	pwd := strings.TrimSpace(string(data))
	if pwd == "" {
		return "", errors.Fatalf("password file %s is empty", filename)
	}
	return pwd, nil
}

func (s Source) stdin() *os.File {
	if s.Stdin != nil {
		return s.Stdin
	}
	return os.Stdin
}

func (s Source) stderr() *os.File {
	if s.Stderr != nil {
		return s.Stderr
	}
	return os.Stderr
}

func (s Source) prompt(ctx context.Context) (string, error) {
	var (
		pwd string
		err error
	)

	in := s.stdin()
	if isTerminal(in) {
		pwd, err = readTerminal(ctx, in, s.stderr(), "enter password for the archive: ")
		if err == nil && pwd != "" {
			var again string
			again, err = readTerminal(ctx, in, s.stderr(), "enter password again: ")
			if err == nil && again != pwd {
				return "", errors.Fatal("passwords do not match")
			}
		}
	} else {
		pwd, err = readLine(in)
	}

	if err != nil {
		return "", errors.Wrap(err, "unable to read password")
	}

	if pwd == "" {
		return "", errors.Fatal("an empty password is not allowed")
	}

	return pwd, nil
}
