package errors_test

import (
	"io/fs"
	"os"
	"testing"

	"github.com/pushback/pushback/internal/errors"
)

func TestFatal(t *testing.T) {
	for _, v := range []struct {
		err      error
		expected bool
	}{
		{errors.Fatal("broken"), true},
		{errors.Fatalf("broken %d", 42), true},
		{errors.Wrap(errors.Fatal("broken"), "cleanup"), true},
		{errors.New("error"), false},
		{nil, false},
	} {
		if errors.IsFatal(v.err) != v.expected {
			t.Fatalf("IsFatal for %q, expected: %v, got: %v", v.err, v.expected, errors.IsFatal(v.err))
		}
	}
}

func TestFatalKeepsCause(t *testing.T) {
	cause := &fs.PathError{Op: "remove", Path: "/tmp/x", Err: fs.ErrNotExist}
	fatal := errors.Fatalf("unable to delete %v: %v", "/tmp/x", cause)

	if fatal.Error() != "Fatal: unable to delete /tmp/x: remove /tmp/x: file does not exist" {
		t.Errorf("unexpected error message: %v", fatal.Error())
	}
	if !errors.IsNotExist(fatal) {
		t.Error("fatal error should wrap the underlying error")
	}
}

func TestClassification(t *testing.T) {
	perm := &os.PathError{Op: "remove", Path: "a", Err: os.ErrPermission}
	missing := &os.PathError{Op: "remove", Path: "a", Err: os.ErrNotExist}

	if !errors.IsPermission(errors.Wrap(perm, "Remove")) {
		t.Error("wrapped permission error not detected")
	}
	if errors.IsPermission(missing) {
		t.Error("not-exist error classified as permission error")
	}
	if !errors.IsNotExist(missing) || errors.IsNotExist(nil) {
		t.Error("IsNotExist misclassified")
	}
}

func TestConfig(t *testing.T) {
	err := errors.Configf("ERROR: Log level specified '--log_level %s' not valid!", "verbose")
	if !errors.IsConfig(err) || errors.IsFatal(err) {
		t.Fatalf("misclassified config error %v", err)
	}
	if err.Error() != "ERROR: Log level specified '--log_level verbose' not valid!" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
