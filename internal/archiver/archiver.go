// Package archiver writes a file or directory tree into a compressed tar
// artifact and restores such artifacts again.
package archiver

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/klauspost/compress/gzip"

	"github.com/pushback/pushback/internal/crypto"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
)

// File name suffixes of artifacts.
const (
	Suffix          = ".tar.gz"
	EncryptedSuffix = ".enc"
)

// TimestampFormat prefixes every artifact name.
const TimestampFormat = "20060102-150405"

// Request names what to archive and where the artifact goes.
type Request struct {
	SourcePath      string
	OutputDirectory string
}

// Artifact is the file produced by Archive.
type Artifact struct {
	Path      string
	CreatedAt time.Time
	Encrypted bool
}

// Name returns the base name of the artifact file.
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// ArtifactName returns the file name for an artifact of source created at t.
func ArtifactName(t time.Time, source string, encrypted bool) string {
	name := t.Format(TimestampFormat) + "-" + filepath.Base(filepath.Clean(source)) + Suffix
	if encrypted {
		name += EncryptedSuffix
	}
	return name
}

// Archiver creates and extracts artifacts. When Password is set artifacts
// are encrypted.
type Archiver struct {
	Clock    clock.Clock
	Logger   logging.Logger
	Password string
	KDF      crypto.Params
}

// New returns an Archiver using the wall clock and default key derivation
// parameters.
func New(logger logging.Logger) *Archiver {
	return &Archiver{
		Clock:  clock.WallClock,
		Logger: logger,
		KDF:    crypto.DefaultParams,
	}
}

func (a *Archiver) log() logging.Logger {
	if a.Logger == nil {
		return logging.Discard()
	}
	return a.Logger
}

func (a *Archiver) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

// Archive writes req.SourcePath into a new artifact in req.OutputDirectory.
// On error the artifact is still returned since a partial file may exist.
func (a *Archiver) Archive(ctx context.Context, req Request) (Artifact, error) {
	now := a.now()
	encrypted := a.Password != ""
	art := Artifact{
		Path:      filepath.Join(req.OutputDirectory, ArtifactName(now, req.SourcePath, encrypted)),
		CreatedAt: now,
		Encrypted: encrypted,
	}

	a.log().Infof("Attempting to archive and compress %s to %s", req.SourcePath, art.Path)

	err := a.archive(ctx, filepath.Clean(req.SourcePath), art.Path)
	if err != nil {
		a.log().Errorf("Failed in attempt to archive and compress: %v", err)
		return art, err
	}

	a.log().Infof("Success in archiving and compressing %s to %s", req.SourcePath, art.Path)
	return art, nil
}

func (a *Archiver) archive(ctx context.Context, source, target string) (err error) {
	if _, err := os.Lstat(source); err != nil {
		return errors.WithStack(err)
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.WithStack(err)
	}

	self, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}

	// closers run in reverse order, the first error wins
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			cerr := closers[i].Close()
			if err == nil {
				err = errors.WithStack(cerr)
			}
		}
	}()
	closers = append(closers, f)

	var wr io.Writer = f
	if a.Password != "" {
		enc, err := crypto.NewWriter(f, a.Password, a.KDF)
		if err != nil {
			return err
		}
		closers = append(closers, enc)
		wr = enc
	}

	gz := gzip.NewWriter(wr)
	closers = append(closers, gz)

	tw := tar.NewWriter(gz)
	closers = append(closers, tw)

	base := filepath.Base(source)
	return filepath.WalkDir(source, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		fi, err := d.Info()
		if err != nil {
			return errors.WithStack(err)
		}

		// the output directory may be below the source
		if os.SameFile(fi, self) {
			debug.Log("skipping the artifact itself at %v", p)
			return nil
		}

		rel, err := filepath.Rel(source, p)
		if err != nil {
			return errors.WithStack(err)
		}

		return a.writeEntry(tw, p, path.Join(base, filepath.ToSlash(rel)), fi)
	})
}

func (a *Archiver) writeEntry(tw *tar.Writer, filename, name string, fi os.FileInfo) error {
	var link string
	switch {
	case fi.Mode().IsRegular(), fi.IsDir():
	case fi.Mode()&os.ModeSymlink != 0:
		var err error
		link, err = os.Readlink(filename)
		if err != nil {
			return errors.WithStack(err)
		}
	default:
		a.log().Warningf("Skipping %s, unsupported file type %v", filename, fi.Mode().Type())
		return nil
	}

	header, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return errors.Wrap(err, "FileInfoHeader")
	}

	header.Name = name
	if fi.IsDir() {
		header.Name += "/"
	}

	records, err := readXattrs(filename)
	if err != nil {
		debug.Log("unable to read extended attributes of %v: %v", filename, err)
		a.log().Debugf("Ignoring extended attributes of %s: %v", filename, err)
	}
	if len(records) > 0 {
		header.PAXRecords = records
		header.Format = tar.FormatPAX
	}

	if err := tw.WriteHeader(header); err != nil {
		return errors.Wrap(err, "TarHeader")
	}

	if !fi.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}

	// the header fixed the size, a file growing meanwhile is cut off
	_, err = io.CopyN(tw, f, header.Size)
	cerr := f.Close()
	if err != nil {
		return errors.Wrapf(err, "copying %v", filename)
	}
	return errors.WithStack(cerr)
}
