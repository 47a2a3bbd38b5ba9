package main

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/global"
)

func init() {
	// don't import `go.uber.org/automaxprocs` to disable the log output
	_, _ = maxprocs.Set()
}

var version = "0.1.0-dev (compiled manually)"

func newRootCommand(gopts *global.Options) *cobra.Command {
	opts := newBackupOptions()

	cmd := &cobra.Command{
		Use:   "pushback -i path [flags]",
		Short: "Archive a path and upload it to a remote",
		Long: `
pushback archives a file or directory into a timestamped .tar.gz file in a
scratch directory, uploads it to the configured remote (Google Drive by
default) and deletes the local copy again.

EXIT STATUS
===========

Exit status is 0 if the run completed, including when archiving or uploading
failed and this was logged.
Exit status is 1 if the invocation was invalid or the artifact could not be
deleted.
Exit status is 130 if the run was interrupted.
`,
		Version:           version,
		Args:              cobra.NoArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,

		PreRunE: func(c *cobra.Command, _ []string) error {
			if err := opts.Check(); err != nil {
				return err
			}
			return gopts.PreRun(c.Context())
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return runBackup(c.Context(), opts, gopts)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Configf("ERROR: %v", err)
	})

	f := cmd.Flags()
	gopts.AddFlags(f)
	opts.AddFlags(f)

	// no completion command for a single command program
	cmd.CompletionOptions.DisableDefaultCmd = true

	global.RegisterProfiling(cmd, gopts.Stderr)

	return cmd
}

func main() {
	debug.Log("main %#v", os.Args)
	debug.Log("pushback %s compiled with %v on %v/%v",
		version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	gopts := global.New()
	ctx := global.CreateGlobalContext(gopts.Stderr)
	err := newRootCommand(gopts).ExecuteContext(ctx)
	if err == nil {
		err = ctx.Err()
	}

	gopts.Exit(err)
}
