package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/pushback/pushback/internal/debug"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
)

// DefaultClientSecrets is the client secrets file used when none is given.
const DefaultClientSecrets = "client_secrets.json"

// DefaultPorts are tried in order for the redirect listener, 0 picks any
// free port.
var DefaultPorts = []int{8080, 8090, 0}

const successPage = "The authentication flow has completed. You may close this window.\n"

// LocalWebserver runs the OAuth2 authorization code flow for installed
// applications: the user grants access in the browser, which is redirected
// to a short lived web server on the loopback interface.
type LocalWebserver struct {
	// ClientSecrets is the path of the client secrets JSON file downloaded
	// from the Google API console.
	ClientSecrets string

	// Scopes default to drive.DriveFileScope.
	Scopes []string

	// Host and Ports of the redirect listener, default localhost and
	// DefaultPorts.
	Host  string
	Ports []int

	// Transport is used for the token exchange and the returned session.
	Transport http.RoundTripper

	Logger logging.Logger

	// OpenBrowser defaults to browser.OpenURL.
	OpenBrowser func(url string) error
}

var _ Authenticator = &LocalWebserver{}

type callback struct {
	code string
	err  error
}

// Authenticate blocks until the user completed the consent page, ctx is
// canceled or the flow failed.
func (w *LocalWebserver) Authenticate(ctx context.Context) (Session, error) {
	log := w.Logger
	if log == nil {
		log = logging.Discard()
	}

	config, err := w.loadConfig()
	if err != nil {
		return nil, err
	}

	ln, err := w.listen()
	if err != nil {
		return nil, err
	}

	config.RedirectURL = fmt.Sprintf("http://%s/", net.JoinHostPort(w.host(), strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)))
	debug.Log("redirect URL is %v", config.RedirectURL)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	results := make(chan callback, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			debug.Log("redirect listener failed: %v", err)
		}
	}()
	defer func() { _ = srv.Close() }()

	open := w.OpenBrowser
	if open == nil {
		open = browser.OpenURL
	}

	log.Infof("Your browser has been opened to visit: %s", authURL)
	if err := open(authURL); err != nil {
		log.Warningf("Unable to open a browser (%v), please visit the URL above manually", err)
	}

	var res callback
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}

	if res.err != nil {
		return nil, res.err
	}

	token, err := config.Exchange(withTransport(ctx, w.Transport), res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrap(err, "exchanging the authorization code")
	}

	return &tokenSession{config: config, token: token, rt: w.Transport}, nil
}

func (w *LocalWebserver) host() string {
	if w.Host == "" {
		return "localhost"
	}
	return w.Host
}

func (w *LocalWebserver) loadConfig() (*oauth2.Config, error) {
	filename := w.ClientSecrets
	if filename == "" {
		filename = DefaultClientSecrets
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading client secrets")
	}

	scopes := w.Scopes
	if len(scopes) == 0 {
		scopes = []string{drive.DriveFileScope}
	}

	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing client secrets %v", filename)
	}
	return config, nil
}

func (w *LocalWebserver) listen() (net.Listener, error) {
	ports := w.Ports
	if len(ports) == 0 {
		ports = DefaultPorts
	}

	var errs []error
	for _, port := range ports {
		ln, err := net.Listen("tcp", net.JoinHostPort(w.host(), strconv.Itoa(port)))
		if err == nil {
			return ln, nil
		}
		debug.Log("unable to listen on port %d: %v", port, err)
		errs = append(errs, err)
	}

	return nil, errors.Wrap(errors.Join(errs...), "no port available for the redirect listener")
}

// callbackHandler receives the redirect from the consent page and reports
// the first outcome on results.
func callbackHandler(state string, results chan<- callback) http.Handler {
	report := func(res callback) {
		select {
		case results <- res:
		default:
		}
	}

	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(rw, req)
			return
		}

		q := req.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(rw, "authentication failed", http.StatusBadRequest)
			report(callback{err: errors.Errorf("authorization denied: %s", q.Get("error"))})

		case q.Get("state") != state:
			http.Error(rw, "state mismatch", http.StatusBadRequest)
			report(callback{err: errors.New("state parameter of the redirect does not match")})

		case q.Get("code") == "":
			http.Error(rw, "missing code", http.StatusBadRequest)
			report(callback{err: errors.New("redirect does not contain an authorization code")})

		default:
			_, _ = fmt.Fprint(rw, successPage)
			report(callback{code: q.Get("code")})
		}
	})
}
