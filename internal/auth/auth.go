// Package auth obtains authenticated sessions for remotes which require an
// interactive login.
package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// Session is an authenticated connection to a remote. Its contents are only
// meaningful to the backend which requested it.
type Session interface {
	// Client returns an HTTP client which authenticates every request.
	Client(ctx context.Context) *http.Client
}

// Authenticator produces a Session, possibly after interacting with the user.
type Authenticator interface {
	Authenticate(ctx context.Context) (Session, error)
}

// tokenSession authenticates requests with an OAuth2 token. Expired access
// tokens are refreshed transparently by the oauth2 package.
type tokenSession struct {
	config *oauth2.Config
	token  *oauth2.Token
	rt     http.RoundTripper
}

func (s *tokenSession) Client(ctx context.Context) *http.Client {
	return s.config.Client(withTransport(ctx, s.rt), s.token)
}

// withTransport makes the oauth2 package use rt for its own requests.
func withTransport(ctx context.Context, rt http.RoundTripper) context.Context {
	if rt == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: rt})
}

// Static returns an Authenticator which hands out a session authenticating
// with the given token. It is meant for non-interactive use.
func Static(token *oauth2.Token, rt http.RoundTripper) Authenticator {
	return staticAuthenticator{&tokenSession{config: &oauth2.Config{}, token: token, rt: rt}}
}

type staticAuthenticator struct {
	session Session
}

func (a staticAuthenticator) Authenticate(context.Context) (Session, error) {
	return a.session, nil
}
