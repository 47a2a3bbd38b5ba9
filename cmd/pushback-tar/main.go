package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/pushback/pushback/internal/archiver"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/global"
)

func init() {
	// don't import `go.uber.org/automaxprocs` to disable the log output
	_, _ = maxprocs.Set()
}

// TarOptions bundles the options of pushback-tar.
type TarOptions struct {
	ArchiveAndCompress bool
	Extract            bool
	Input              string
	Output             string
}

func (opts *TarOptions) AddFlags(f *pflag.FlagSet) {
	f.BoolVar(&opts.ArchiveAndCompress, "archive_and_compress", false, "archive and compress the input path")
	f.BoolVar(&opts.Extract, "extract", false, "extract the input .tar.gz file")
	f.StringVarP(&opts.Input, "input", "i", "", "the input `path` to archive and compress or extract")
	f.StringVarP(&opts.Output, "output", "o", "", "the output `directory` for the artifact or the extracted files")
}

// Check validates the options before any work is done.
func (opts *TarOptions) Check() error {
	switch {
	case opts.ArchiveAndCompress && opts.Extract:
		return errors.Configf("ERROR: --archive_and_compress and --extract cannot be specified at the same time")
	case !opts.ArchiveAndCompress && !opts.Extract:
		return errors.Configf("ERROR: one of --archive_and_compress or --extract is required")
	case opts.Input == "":
		return errors.Configf("ERROR: the --input flag is required")
	case opts.Output == "":
		return errors.Configf("ERROR: the --output flag is required")
	}
	return nil
}

func newRootCommand(gopts *global.Options) *cobra.Command {
	var opts TarOptions

	cmd := &cobra.Command{
		Use:   "pushback-tar (--archive_and_compress | --extract) -i path -o dir [flags]",
		Short: "Create or extract pushback artifacts",
		Long: `
pushback-tar creates a timestamped .tar.gz artifact from a path, or extracts
such an artifact into a directory. Encrypted artifacts (.tar.gz.enc) need the
password they were created with.

Failures while archiving or extracting are logged, the exit status is still 0.
`,
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
			runTar(c.Context(), opts, gopts)
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Configf("ERROR: %v", err)
	})

	f := cmd.Flags()
	opts.AddFlags(f)
	gopts.AddFlags(f)

	cmd.CompletionOptions.DisableDefaultCmd = true
	global.RegisterProfiling(cmd, gopts.Stderr)

	return cmd
}

// runTar performs the selected action. Errors are logged by the archiver.
func runTar(ctx context.Context, opts TarOptions, gopts *global.Options) {
	a := archiver.New(gopts.Logger("tar"))
	a.Password = gopts.Password
	if gopts.Password != "" {
		a.KDF = gopts.KDF
	}

	if opts.ArchiveAndCompress {
		art, err := a.Archive(ctx, archiver.Request{SourcePath: opts.Input, OutputDirectory: opts.Output})
		debug.Log("archived to %v, err %v", art.Path, err)
		return
	}

	err := a.Extract(ctx, opts.Input, opts.Output)
	debug.Log("extracted %v, err %v", opts.Input, err)
}

func main() {
	debug.Log("main %#v", os.Args)

	gopts := global.New()
	ctx := global.CreateGlobalContext(gopts.Stderr)
	err := newRootCommand(gopts).ExecuteContext(ctx)
	if err == nil {
		err = ctx.Err()
	}

	gopts.Exit(err)
}
