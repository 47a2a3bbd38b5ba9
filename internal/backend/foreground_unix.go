//go:build unix

package backend

import (
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/pushback/pushback/internal/errors"
)

func startBackground(cmd *exec.Cmd) error {
	cmd.SysProcAttr = &unix.SysProcAttr{
		Setpgid: true,
	}

	return errors.Wrap(cmd.Start(), "cmd.Start")
}
