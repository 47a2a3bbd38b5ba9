package limiter

import (
	"context"
	"io"

	"github.com/pushback/pushback/internal/backend"
)

// LimitBackend wraps a Backend and applies rate limiting to Save. A nil
// Limiter returns be unchanged.
func LimitBackend(be backend.Backend, l Limiter) backend.Backend {
	if l == nil {
		return be
	}

	return rateLimitedBackend{
		Backend: be,
		limiter: l,
	}
}

type rateLimitedBackend struct {
	backend.Backend
	limiter Limiter
}

func (r rateLimitedBackend) Save(ctx context.Context, name string, rd io.Reader, size int64) (backend.FileInfo, error) {
	return r.Backend.Save(ctx, name, r.limiter.Upstream(ctx, rd), size)
}
