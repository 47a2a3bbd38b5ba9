package archiver

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/pushback/pushback/internal/crypto"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
)

// ErrPasswordRequired is returned when extracting an encrypted artifact
// without a password.
var ErrPasswordRequired = errors.New("artifact is encrypted, a password is required")

// IsEncrypted reports whether filename names an encrypted artifact.
func IsEncrypted(filename string) bool {
	return strings.HasSuffix(filename, EncryptedSuffix)
}

// Extract restores the artifact at archivePath below outputDirectory.
func (a *Archiver) Extract(ctx context.Context, archivePath, outputDirectory string) error {
	a.log().Infof("Attempting to extract %s to %s", archivePath, outputDirectory)

	err := a.extract(ctx, archivePath, outputDirectory)
	if err != nil {
		a.log().Errorf("Failed in attempt to extract: %v", err)
		return err
	}

	a.log().Infof("Success in extracting %s to %s", archivePath, outputDirectory)
	return nil
}

type dirMeta struct {
	path    string
	mode    os.FileMode
	modTime time.Time
}

func (a *Archiver) extract(ctx context.Context, archivePath, outputDirectory string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = f.Close() }()

	var rd io.Reader = f
	if IsEncrypted(archivePath) {
		if a.Password == "" {
			return ErrPasswordRequired
		}
		rd, err = crypto.NewReader(f, a.Password)
		if err != nil {
			return err
		}
	}

	gz, err := gzip.NewReader(rd)
	if err != nil {
		return errors.Wrap(err, "gzip.NewReader")
	}
	defer func() { _ = gz.Close() }()

	if err := os.MkdirAll(outputDirectory, 0700); err != nil {
		return errors.WithStack(err)
	}

	// directory metadata is applied last, writing files changes the mtime
	var dirs []dirMeta

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading tar header")
		}

		target, err := memberPath(outputDirectory, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir, tar.TypeReg, tar.TypeSymlink:
			if target == filepath.Clean(outputDirectory) && header.Typeflag != tar.TypeDir {
				return errors.Errorf("refusing to replace the output directory with %q", header.Name)
			}
			if err := clearTarget(target, header.Typeflag == tar.TypeDir); err != nil {
				return err
			}
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0700); err != nil {
				return errors.WithStack(err)
			}
			dirs = append(dirs, dirMeta{target, header.FileInfo().Mode().Perm(), header.ModTime})

		case tar.TypeReg:
			if err := writeFile(target, tr, header); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
				return errors.WithStack(err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return errors.WithStack(err)
			}

		default:
			a.log().Warningf("Skipping %s, unsupported tar entry type %q", header.Name, header.Typeflag)
			continue
		}

		if err := writeXattrs(target, header.PAXRecords); err != nil {
			debug.Log("unable to restore extended attributes of %v: %v", target, err)
			a.log().Debugf("Ignoring extended attributes of %s: %v", target, err)
		}
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		// a later member may have replaced the directory
		if fi, err := os.Lstat(d.path); err != nil || !fi.IsDir() {
			debug.Log("not restoring metadata of %v, no longer a directory", d.path)
			continue
		}
		if err := os.Chmod(d.path, d.mode); err != nil {
			return errors.WithStack(err)
		}
		if err := os.Chtimes(d.path, d.modTime, d.modTime); err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

// memberPath returns the location of the tar member name below dir. Names
// which leave dir, directly or through a symlink extracted earlier, are
// rejected.
func memberPath(dir, name string) (string, error) {
	rel := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if !filepath.IsLocal(rel) {
		return "", errors.Errorf("refusing to extract %q outside of the output directory", name)
	}

	cur := dir
	parts := strings.Split(filepath.Clean(rel), string(filepath.Separator))
	for _, part := range parts[:len(parts)-1] {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if errors.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", errors.WithStack(err)
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return "", errors.Errorf("refusing to extract %q below symlink %v", name, cur)
		}
	}

	return filepath.Join(dir, rel), nil
}

// clearTarget removes an existing entry at target so that the member
// replaces it instead of writing through it. Directories stay in place for
// directory members.
func clearTarget(target string, dir bool) error {
	fi, err := os.Lstat(target)
	if errors.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}

	if fi.IsDir() {
		if dir {
			return nil
		}
		// only empty directories give way to a file or symlink
		return errors.Wrapf(os.Remove(target), "replacing directory %v", target)
	}

	debug.Log("replacing existing %v (%v)", target, fi.Mode().Type())
	return errors.WithStack(os.Remove(target))
}

func writeFile(target string, rd io.Reader, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return errors.WithStack(err)
	}

	// O_EXCL together with O_NOFOLLOW never writes through a symlink
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL|openNoFollow, 0600)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = io.Copy(f, rd)
	if err == nil {
		err = f.Chmod(header.FileInfo().Mode().Perm())
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "writing %v", target)
	}

	return errors.WithStack(os.Chtimes(target, header.ModTime, header.ModTime))
}
