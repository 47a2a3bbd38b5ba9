package backend

import (
	"os"
	"os/exec"
	"strings"
)

// StartBackground starts cmd in its own process group, so that a SIGINT
// delivered to pushback does not kill it before cleanup ran. All PUSHBACK_*
// variables are removed from its environment.
func StartBackground(cmd *exec.Cmd) error {
	env := os.Environ()

	cmd.Env = env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "PUSHBACK_") {
			continue
		}
		cmd.Env = append(cmd.Env, kv)
	}

	return startBackground(cmd)
}
