// Package debug writes developer trace output. It is disabled unless one of
// the environment variables DEBUG_LOG, DEBUG_FUNCS or DEBUG_FILES is set, and
// is independent of the user-facing log configured by package logging.
package debug

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

var opts struct {
	isEnabled bool
	logger    *log.Logger
	funcs     map[string]bool
	files     map[string]bool
}

// initialize before any package level init() runs
var _ = initDebug()

func initDebug() bool {
	opts.logger = openDebugLog(os.Getenv("DEBUG_LOG"))
	opts.funcs = parseFilter(os.Getenv("DEBUG_FUNCS"), func(s string) string { return s })
	opts.files = parseFilter(os.Getenv("DEBUG_FILES"), padFile)

	opts.isEnabled = opts.logger != nil || len(opts.funcs) > 0 || len(opts.files) > 0
	if opts.isEnabled {
		fmt.Fprintf(os.Stderr, "debug enabled\n")
	}

	return opts.isEnabled
}

func openDebugLog(filename string) *log.Logger {
	if filename == "" {
		return nil
	}

	fmt.Fprintf(os.Stderr, "debug log file %v\n", filename)

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to open debug log file: %v\n", err)
		os.Exit(2)
	}

	return log.New(f, "", log.LstdFlags)
}

// parseFilter splits a comma separated list of glob patterns. A leading "-"
// disables matching entries, a leading "+" (or none) enables them.
func parseFilter(env string, pad func(string) string) map[string]bool {
	filter := make(map[string]bool)
	if env == "" {
		return filter
	}

	for _, item := range strings.Split(env, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		enabled := true
		switch item[0] {
		case '-':
			enabled = false
			item = item[1:]
		case '+':
			item = item[1:]
		}
		item = pad(item)

		if _, err := path.Match(item, ""); err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid pattern %q: %v\n", item, err)
			os.Exit(5)
		}

		filter[item] = enabled
	}

	return filter
}

// padFile turns "archiver.go" into "*/archiver.go:*" so that patterns match
// the "dir/file:line" keys produced by Log.
func padFile(s string) string {
	if s == "all" {
		return s
	}

	if !strings.Contains(s, "/") {
		s = "*/" + s
	}

	if !strings.Contains(s, ":") {
		s = s + ":*"
	}

	return s
}

func checkFilter(filter map[string]bool, key string) bool {
	if v, ok := filter[key]; ok {
		return v
	}

	for pattern, v := range filter {
		if m, _ := path.Match(pattern, key); m {
			return v
		}
	}

	return filter["all"]
}

func caller() (fn, pos string) {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "", ""
	}

	dir := filepath.Base(filepath.Dir(file))
	pos = fmt.Sprintf("%s/%s:%d", dir, filepath.Base(file), line)

	if f := runtime.FuncForPC(pc); f != nil {
		fn = path.Base(f.Name())
	}

	return fn, pos
}

// Log prints a message to the debug log (if debug is enabled).
func Log(f string, args ...interface{}) {
	if !opts.isEnabled {
		return
	}

	fn, pos := caller()

	if !strings.HasSuffix(f, "\n") {
		f += "\n"
	}

	format := fmt.Sprintf("%s\t%s\t%s", pos, fn, f)

	if opts.logger != nil {
		opts.logger.Printf(format, args...)
	}

	if checkFilter(opts.files, pos) || checkFilter(opts.funcs, fn) {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Enabled returns true when debug output is active.
func Enabled() bool {
	return opts.isEnabled
}
