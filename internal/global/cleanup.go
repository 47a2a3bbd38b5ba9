package global

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// CreateGlobalContext returns a context which is canceled on SIGINT or
// SIGTERM.
func CreateGlobalContext(stderr io.Writer) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	go cleanupHandler(ch, cancel, stderr)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	return ctx
}

// cleanupHandler handles the SIGINT and SIGTERM signals.
func cleanupHandler(c <-chan os.Signal, cancel context.CancelFunc, stderr io.Writer) {
	s := <-c
	debug.Log("signal %v received, cleaning up", s)
	_, _ = fmt.Fprintf(stderr, "signal %v received, cleaning up\n", s)

	if val, _ := os.LookupEnv("PUSHBACK_DEBUG_STACKTRACE_SIGINT"); val != "" {
		_, _ = fmt.Fprintf(stderr, "\n--- STACKTRACE START ---\n\n%s\n--- STACKTRACE END ---\n", stacktrace())
	}

	cancel()
}

// stacktrace returns the stacks of all goroutines.
func stacktrace() string {
	buf := make([]byte, 256*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, 2*len(buf))
	}
}

// ExitCode maps the result of a command to the process exit status and the
// message to print. Configuration errors go to stdout, everything else to
// stderr.
func ExitCode(err error) (code int, msg string, toStdout bool) {
	switch {
	case err == nil:
		return 0, "", false
	case errors.IsConfig(err):
		return 1, err.Error(), true
	case errors.IsFatal(err):
		return 1, err.Error(), false
	case errors.Is(err, context.Canceled):
		return 130, "interrupted", false
	default:
		return 1, fmt.Sprintf("%+v", err), false
	}
}

// Exit prints the message for err and terminates the process.
func (opts *Options) Exit(err error) {
	code, msg, toStdout := ExitCode(err)
	if msg != "" {
		out := opts.Stderr
		if toStdout {
			out = opts.Stdout
		}
		_, _ = fmt.Fprintln(out, msg)
	}

	opts.Close()
	debug.Log("exiting with status code %d", code)
	os.Exit(code)
}
