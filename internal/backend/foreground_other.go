//go:build !unix

package backend

import (
	"os/exec"

	"github.com/pushback/pushback/internal/errors"
)

func startBackground(cmd *exec.Cmd) error {
	return errors.Wrap(cmd.Start(), "cmd.Start")
}
