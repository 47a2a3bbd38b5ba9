package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/pushback/pushback/internal/archiver"
	"github.com/pushback/pushback/internal/auth"
	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/azure"
	"github.com/pushback/pushback/internal/backend/b2"
	"github.com/pushback/pushback/internal/backend/gdrive"
	"github.com/pushback/pushback/internal/backend/gs"
	"github.com/pushback/pushback/internal/backend/limiter"
	"github.com/pushback/pushback/internal/backend/local"
	"github.com/pushback/pushback/internal/backend/location"
	"github.com/pushback/pushback/internal/backend/s3"
	"github.com/pushback/pushback/internal/backend/sftp"
	"github.com/pushback/pushback/internal/backend/swift"
	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/global"
	"github.com/pushback/pushback/internal/pipeline"
)

// BackupOptions bundles the options of a backup run.
type BackupOptions struct {
	Input                    string
	Remote                   string
	ClientSecrets            string
	TempDir                  string
	KeepOnUploadError        bool
	SkipUploadOnArchiveError bool

	backend.TransportOptions
	limiter.Limits

	backends *location.Registry
}

// testAuthenticator replaces the browser login when set.
var testAuthenticator auth.Authenticator

func newBackupOptions() *BackupOptions {
	return &BackupOptions{backends: collectBackends()}
}

func (opts *BackupOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVarP(&opts.Input, "input", "i", "", "`path` of the file or directory to back up (required)")
	f.StringVarP(&opts.Remote, "remote", "r", "", "`location` to upload to (default: $PUSHBACK_REMOTE or "+location.Default+")")
	f.StringVar(&opts.ClientSecrets, "client_secrets", "", "OAuth client secrets `file` for Google Drive (default: $PUSHBACK_CLIENT_SECRETS or "+auth.DefaultClientSecrets+")")
	f.StringVar(&opts.TempDir, "temp_dir", "", "scratch `directory` for the artifact (default: temp beside the executable)")
	f.IntVar(&opts.Limits.UploadKb, "limit_upload", 0, "limits uploads to a maximum `rate` in KiB/s. (default: unlimited)")
	f.BoolVar(&opts.KeepOnUploadError, "keep_on_upload_error", false, "keep the artifact when the upload failed")
	f.BoolVar(&opts.SkipUploadOnArchiveError, "skip_upload_on_archive_error", false, "do not upload when archiving failed")
	f.StringSliceVar(&opts.RootCertFilenames, "cacert", nil, "`file` to load root certificates from (default: use system certificates)")
	f.BoolVar(&opts.InsecureTLS, "insecure_tls", false, "skip TLS certificate verification when connecting to the remote (insecure)")
	f.StringVar(&opts.HTTPUserAgent, "http_user_agent", "", "set a http user agent for outgoing http requests")

	opts.Remote = os.Getenv("PUSHBACK_REMOTE")
	opts.ClientSecrets = os.Getenv("PUSHBACK_CLIENT_SECRETS")
}

// Check validates the options before any work is done.
func (opts *BackupOptions) Check() error {
	if opts.Input == "" {
		return errors.Configf("ERROR: the --input flag is required")
	}
	if opts.Limits.UploadKb < 0 {
		return errors.Configf("ERROR: --limit_upload must not be negative")
	}
	return nil
}

func collectBackends() *location.Registry {
	backends := location.NewRegistry()
	backends.Register(azure.NewFactory())
	backends.Register(b2.NewFactory())
	backends.Register(gdrive.NewFactory())
	backends.Register(gs.NewFactory())
	backends.Register(local.NewFactory())
	backends.Register(s3.NewFactory())
	backends.Register(sftp.NewFactory())
	backends.Register(swift.NewFactory())
	return backends
}

func runBackup(ctx context.Context, opts *BackupOptions, gopts *global.Options) error {
	log := gopts.Logger("pushback")

	loc, err := location.Parse(opts.backends, opts.Remote)
	if err != nil {
		return err
	}

	rt, err := backend.Transport(opts.TransportOptions)
	if err != nil {
		return errors.Fatal(err.Error())
	}

	dir := opts.TempDir
	if dir == "" {
		dir, err = pipeline.DefaultWorkspace()
		if err != nil {
			return err
		}
	}

	ws, err := pipeline.PrepareWorkspace(dir, log)
	if err != nil {
		return err
	}

	authn := testAuthenticator
	if authn == nil {
		secrets := opts.ClientSecrets
		if secrets == "" {
			secrets = auth.DefaultClientSecrets
		}
		authn = &auth.LocalWebserver{
			ClientSecrets: secrets,
			Transport:     rt,
			Logger:        gopts.Logger("auth"),
		}
	}

	arch := archiver.New(gopts.Logger("archiver"))
	arch.Password = gopts.Password
	if gopts.Password != "" {
		arch.KDF = gopts.KDF
	}

	p := &pipeline.Pipeline{
		Archiver: arch,
		Uploader: &pipeline.BackendUploader{
			Registry: opts.backends,
			Location: loc,
			Env: location.Env{
				Transport:     rt,
				Authenticator: authn,
				Limiter:       limiter.NewStaticLimiter(opts.Limits),
			},
			Logger:    gopts.Logger("upload"),
			Encrypted: arch.Password != "",
		},
		Cleaner: &pipeline.Cleaner{Logger: gopts.Logger("cleanup")},
		Policy: pipeline.Policy{
			SkipUploadOnArchiveFailure:  opts.SkipUploadOnArchiveError,
			KeepArtifactOnUploadFailure: opts.KeepOnUploadError,
		},
		Logger: log,
	}

	rep, err := p.Run(ctx, opts.Input, ws)
	debug.Log("run finished in state %v, archive %v, upload %v, cleanup %v",
		rep.State, rep.ArchiveErr, rep.UploadErr, rep.CleanupErr)
	return err
}
