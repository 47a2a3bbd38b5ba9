// Package logging configures the user facing log of pushback. The
// configuration is resolved once when a command starts and the resulting
// loggers are handed to every component explicitly; nothing in pushback
// logs through the loggo default context.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"

	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// Logger is the subset of loggo.Logger used by the pipeline components.
type Logger interface {
	Criticalf(message string, args ...interface{})
	Errorf(message string, args ...interface{})
	Warningf(message string, args ...interface{})
	Infof(message string, args ...interface{})
	Debugf(message string, args ...interface{})
}

var _ Logger = loggo.Logger{}

// Levels lists the accepted values of --log_level.
var Levels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// DefaultFile is used when file logging is enabled without --log_file.
const DefaultFile = "../logs/execution.log"

// TimeFormat is used for the timestamp of every log line.
const TimeFormat = "2006-01-02 15:04:05"

// Config describes where log output goes. It mirrors the logging flags.
type Config struct {
	Level          string
	File           string
	DisableFile    bool
	DisableConsole bool

	// DefaultFile replaces the package level DefaultFile when set.
	DefaultFile string

	// Console receives console output, os.Stderr when nil.
	Console io.Writer
}

// ParseLevel converts one of Levels (case-insensitive) into a loggo level.
// The empty string selects INFO.
func ParseLevel(s string) (loggo.Level, error) {
	if s == "" {
		return loggo.INFO, nil
	}

	for _, name := range Levels {
		if strings.EqualFold(s, name) {
			level, _ := loggo.ParseLevel(name)
			return level, nil
		}
	}

	return loggo.UNSPECIFIED, errors.Configf("ERROR: Log level specified '--log_level %s' not valid! Please choose from %s",
		s, strings.Join(Levels, "|"))
}

// Format renders an entry as "<time> <file> -> <LEVEL>: <message>".
func Format(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.Local).Format(TimeFormat)
	return fmt.Sprintf("%s %s -> %s: %s", ts, filepath.Base(entry.Filename), entry.Level, entry.Message)
}

// Logging owns the loggo context and the open log file of one process.
type Logging struct {
	ctx   *loggo.Context
	level loggo.Level
	file  io.WriteCloser
	path  string
}

// Setup validates cfg and builds the logging context. All returned errors
// are configuration errors; nothing has been written when they occur.
func Setup(cfg Config) (*Logging, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logging{
		ctx:   loggo.NewContext(level),
		level: level,
	}

	if !cfg.DisableFile {
		path, err := resolveFile(cfg)
		if err != nil {
			return nil, err
		}

		l.path = path
		l.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 3,
		}

		err = l.ctx.AddWriter("file", loggo.NewSimpleWriter(l.file, Format))
		if err != nil {
			return nil, errors.Wrap(err, "AddWriter")
		}
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	var writer loggo.Writer = loggo.NewSimpleWriter(console, Format)
	if cfg.DisableConsole {
		writer = loggo.NewMinimumLevelWriter(writer, loggo.ERROR)
	}

	err = l.ctx.AddWriter("console", writer)
	if err != nil {
		return nil, errors.Wrap(err, "AddWriter")
	}

	debug.Log("logging configured: level %v, file %q, console errors only %v", level, l.path, cfg.DisableConsole)
	return l, nil
}

func resolveFile(cfg Config) (string, error) {
	if cfg.File != "" {
		fi, err := os.Stat(cfg.File)
		if err != nil || !fi.Mode().IsRegular() {
			return "", errors.Configf("ERROR: Log file specified '--log_file %s' not found!", cfg.File)
		}
		return cfg.File, nil
	}

	path := cfg.DefaultFile
	if path == "" {
		path = DefaultFile
	}

	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return "", errors.Configf("ERROR: unable to create log directory %s: %v", filepath.Dir(path), err)
	}

	return path, nil
}

// Logger returns the logger for the named component.
func (l *Logging) Logger(name string) loggo.Logger {
	return l.ctx.GetLogger(name)
}

// Level returns the configured minimum level.
func (l *Logging) Level() loggo.Level {
	return l.level
}

// File returns the path of the log file, or "" if file logging is disabled.
func (l *Logging) File() string {
	return l.path
}

// Close flushes and closes the log file.
func (l *Logging) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger without writers, for callers that did not
// configure logging.
func Discard() Logger {
	return loggo.NewContext(loggo.CRITICAL).GetLogger("discard")
}
