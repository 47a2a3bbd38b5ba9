package location

import (
	"context"
	"net/http"
	"sort"

	"github.com/pushback/pushback/internal/auth"
	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/limiter"
	"github.com/pushback/pushback/internal/errors"
	"github.com/pushback/pushback/internal/logging"
)

// Env carries what a backend may need to connect besides its config.
type Env struct {
	Transport     http.RoundTripper
	Authenticator auth.Authenticator
	Limiter       limiter.Limiter
	Logger        logging.Logger
}

// Factory parses the locations of one scheme and opens backends for them.
type Factory interface {
	Scheme() string
	ParseConfig(s string) (interface{}, error)
	Open(ctx context.Context, cfg interface{}, env Env) (backend.Backend, error)
}

// Registry maps schemes to backend factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory. Registering a scheme twice panics.
func (r *Registry) Register(factory Factory) {
	if _, ok := r.factories[factory.Scheme()]; ok {
		panic("duplicate backend " + factory.Scheme())
	}
	r.factories[factory.Scheme()] = factory
}

func (r *Registry) Lookup(scheme string) Factory {
	return r.factories[scheme]
}

// Schemes returns the sorted list of registered schemes.
func (r *Registry) Schemes() []string {
	schemes := make([]string, 0, len(r.factories))
	for s := range r.factories {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open connects to the backend described by loc. The backend is rate
// limited when env carries a Limiter.
func (r *Registry) Open(ctx context.Context, loc Location, env Env) (backend.Backend, error) {
	factory := r.Lookup(loc.Scheme)
	if factory == nil {
		return nil, errors.Fatalf("invalid backend: %q", loc.Scheme)
	}

	be, err := factory.Open(ctx, loc.Config, env)
	if err != nil {
		return nil, err
	}

	return limiter.LimitBackend(be, env.Limiter), nil
}

// factory adapts typed parse and open functions to Factory.
type factory[C any, T backend.Backend] struct {
	scheme string
	parse  func(s string) (*C, error)
	open   func(ctx context.Context, cfg C, env Env) (T, error)
}

func (f *factory[C, T]) Scheme() string {
	return f.scheme
}

func (f *factory[C, T]) ParseConfig(s string) (interface{}, error) {
	return f.parse(s)
}

func (f *factory[C, T]) Open(ctx context.Context, cfg interface{}, env Env) (backend.Backend, error) {
	c, ok := cfg.(*C)
	if !ok {
		return nil, errors.Errorf("%s: unexpected config type %T", f.scheme, cfg)
	}
	return f.open(ctx, *c, env)
}

// NewHTTPBackendFactory returns a factory for backends which talk HTTP
// through the shared transport.
func NewHTTPBackendFactory[C any, T backend.Backend](
	scheme string,
	parse func(s string) (*C, error),
	open func(ctx context.Context, cfg C, rt http.RoundTripper) (T, error)) Factory {

	return &factory[C, T]{
		scheme: scheme,
		parse:  parse,
		open: func(ctx context.Context, cfg C, env Env) (T, error) {
			return open(ctx, cfg, env.Transport)
		},
	}
}

// NewAuthBackendFactory returns a factory for HTTP backends which need an
// interactive login.
func NewAuthBackendFactory[C any, T backend.Backend](
	scheme string,
	parse func(s string) (*C, error),
	open func(ctx context.Context, cfg C, rt http.RoundTripper, authn auth.Authenticator) (T, error)) Factory {

	return &factory[C, T]{
		scheme: scheme,
		parse:  parse,
		open: func(ctx context.Context, cfg C, env Env) (T, error) {
			if env.Authenticator == nil {
				var zero T
				return zero, errors.Errorf("%s: no authenticator configured", scheme)
			}
			return open(ctx, cfg, env.Transport, env.Authenticator)
		},
	}
}

// NewLocalBackendFactory returns a factory for backends which do not use
// HTTP.
func NewLocalBackendFactory[C any, T backend.Backend](
	scheme string,
	parse func(s string) (*C, error),
	open func(ctx context.Context, cfg C) (T, error)) Factory {

	return &factory[C, T]{
		scheme: scheme,
		parse:  parse,
		open: func(ctx context.Context, cfg C, _ Env) (T, error) {
			return open(ctx, cfg)
		},
	}
}
