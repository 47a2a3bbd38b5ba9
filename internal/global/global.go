// Package global holds the options and process plumbing shared by the
// pushback commands: logging and password flags, the signal aware context
// and the mapping of errors to exit codes.
package global

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/pushback/pushback/internal/crypto"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
	"github.com/pushback/pushback/internal/secret"
)

// Options hold the flags every pushback command understands.
type Options struct {
	LogLevel              string
	LogFile               string
	DisableFileLogging    bool
	EnableFileLogging     bool
	DisableConsoleLogging bool

	PasswordFile    string
	PasswordCommand string
	Encrypt         bool

	// DefaultLogFile overrides logging.DefaultFile, for tests.
	DefaultLogFile string

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer

	// set by PreRun
	Logging  *logging.Logging
	Password string
	KDF      crypto.Params
}

// New returns Options writing to the process' standard streams.
func New() *Options {
	return &Options{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (opts *Options) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&opts.LogLevel, "log_level", "INFO", "log `level`, one of "+strings.Join(logging.Levels, "|"))
	f.StringVar(&opts.LogFile, "log_file", "", "append the log to this existing `file` (default: "+logging.DefaultFile+")")
	f.BoolVar(&opts.DisableFileLogging, "disable_file_logging", false, "do not write a log file")
	f.BoolVar(&opts.EnableFileLogging, "enable_file_logging", false, "write a log file (default)")
	f.BoolVar(&opts.DisableConsoleLogging, "disable_console_logging", false, "only log errors to the console")

	f.StringVar(&opts.PasswordFile, "password_file", "", "encrypt with the password read from `file` (default: $"+secret.EnvPasswordFile+")")
	f.StringVar(&opts.PasswordCommand, "password_command", "", "encrypt with the password printed by shell `command`")
	f.BoolVar(&opts.Encrypt, "encrypt", false, "encrypt the artifact, prompt for a password if none is configured")

	opts.PasswordFile = os.Getenv(secret.EnvPasswordFile)
}

// PreRun validates the flags, configures logging and resolves the password.
func (opts *Options) PreRun(ctx context.Context) error {
	if opts.DisableFileLogging && opts.EnableFileLogging {
		return errors.Configf("ERROR: --enable_file_logging and --disable_file_logging cannot be specified at the same time")
	}

	l, err := logging.Setup(logging.Config{
		Level:          opts.LogLevel,
		File:           opts.LogFile,
		DisableFile:    opts.DisableFileLogging,
		DisableConsole: opts.DisableConsoleLogging,
		DefaultFile:    opts.DefaultLogFile,
		Console:        opts.Stderr,
	})
	if err != nil {
		return err
	}
	opts.Logging = l

	src := secret.Source{Stdin: opts.Stdin}
	if f, ok := opts.Stderr.(*os.File); ok {
		src.Stderr = f
	}

	pwd, err := src.Resolve(ctx, secret.Options{
		File:    opts.PasswordFile,
		Command: opts.PasswordCommand,
		Prompt:  opts.Encrypt,
	})
	if err != nil {
		if errors.IsFatal(err) {
			return err
		}
		return errors.Fatalf("Resolving password failed: %v", err)
	}

	if opts.Encrypt && pwd == "" {
		return errors.Fatal("an empty password is not allowed for --encrypt")
	}

	opts.Password = pwd
	if pwd != "" {
		opts.KDF = calibrateKDF()
		debug.Log("using scrypt parameters %+v", opts.KDF)
	}

	return nil
}

// calibrateKDF is replaced by the insecure-kdf debug flag.
var calibrateKDF = func() crypto.Params {
	params, err := crypto.Calibrate(500*time.Millisecond, 60)
	if err != nil {
		debug.Log("calibrating scrypt failed: %v", err)
	}
	return params
}

// Logger returns the named logger, or a discarding one before PreRun.
func (opts *Options) Logger(name string) logging.Logger {
	if opts.Logging == nil {
		return logging.Discard()
	}
	return opts.Logging.Logger(name)
}

// Close releases the log file.
func (opts *Options) Close() {
	if opts.Logging == nil {
		return
	}
	if err := opts.Logging.Close(); err != nil {
		debug.Log("closing log: %v", err)
	}
}
