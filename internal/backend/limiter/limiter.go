// Package limiter throttles the upload bandwidth of a backend.
package limiter

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Limits represents a set of bandwidth limits in KiB/s, zero means unlimited.
type Limits struct {
	UploadKb int
}

// Limiter wraps readers so that reading from them consumes bandwidth tokens.
type Limiter interface {
	// Upstream returns a reader which blocks until enough tokens are
	// available. Waiting ends early when ctx is canceled.
	Upstream(ctx context.Context, r io.Reader) io.Reader
}

// burst is the largest amount of bytes consumed at once.
const burst = 64 * 1024

type staticLimiter struct {
	upstream *rate.Limiter
}

// NewStaticLimiter constructs a Limiter with a fixed (static) upload limit.
// It returns nil when l contains no limit.
func NewStaticLimiter(l Limits) Limiter {
	if l.UploadKb <= 0 {
		return nil
	}

	return staticLimiter{
		upstream: rate.NewLimiter(toByteRate(l.UploadKb), burst),
	}
}

func (l staticLimiter) Upstream(ctx context.Context, r io.Reader) io.Reader {
	return &rateLimitedReader{ctx: ctx, reader: r, bucket: l.upstream}
}

type rateLimitedReader struct {
	ctx    context.Context
	reader io.Reader
	bucket *rate.Limiter
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if werr := consumeTokens(r.ctx, n, r.bucket); werr != nil {
		return n, werr
	}
	return n, err
}

func consumeTokens(ctx context.Context, tokens int, bucket *rate.Limiter) error {
	// WaitN refuses to wait for more than Burst() tokens at once
	for tokens > 0 {
		n := tokens
		if n > bucket.Burst() {
			n = bucket.Burst()
		}
		if err := bucket.WaitN(ctx, n); err != nil {
			return err
		}
		tokens -= n
	}
	return nil
}

func toByteRate(val int) rate.Limit {
	return rate.Limit(float64(val) * 1024.)
}
