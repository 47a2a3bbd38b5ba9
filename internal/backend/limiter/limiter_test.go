package limiter

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/pushback/pushback/internal/backend"
	rtest "github.com/pushback/pushback/internal/test"
)

func TestNoLimit(t *testing.T) {
	rtest.Assert(t, NewStaticLimiter(Limits{}) == nil, "limiter without limits is not nil")

	var be backend.Backend = &recordingBackend{}
	rtest.Assert(t, LimitBackend(be, nil) == be, "backend wrapped without a limiter")
}

func TestReadLimiter(t *testing.T) {
	reader := bytes.NewReader(make([]byte, 300))
	limReader := &rateLimitedReader{context.Background(), reader, rate.NewLimiter(rate.Limit(10000), 100)}

	n, err := limReader.Read([]byte{})
	rtest.OK(t, err)
	rtest.Equals(t, 0, n)

	// more than one burst at once
	n, err = limReader.Read(make([]byte, 300))
	rtest.OK(t, err)
	rtest.Equals(t, 300, n)

	n, err = limReader.Read([]byte{})
	rtest.Equals(t, io.EOF, err)
	rtest.Equals(t, 0, n)
}

func TestReadLimiterCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// an empty bucket forces a wait
	bucket := rate.NewLimiter(rate.Limit(1), 10)
	bucket.AllowN(time.Now(), 10)

	limReader := &rateLimitedReader{ctx, bytes.NewReader(make([]byte, 10)), bucket}
	_, err := limReader.Read(make([]byte, 10))
	rtest.Assert(t, err != nil, "read on canceled context did not fail")
}

type recordingBackend struct {
	data []byte
}

func (b *recordingBackend) Location() string { return "recording" }
func (b *recordingBackend) Close() error     { return nil }

func (b *recordingBackend) Save(_ context.Context, name string, rd io.Reader, size int64) (backend.FileInfo, error) {
	buf, err := io.ReadAll(rd)
	b.data = buf
	return backend.FileInfo{Name: name, Size: int64(len(buf)), ID: name}, err
}

func TestLimitBackend(t *testing.T) {
	data := rtest.Random(42, 100*1024)
	rec := &recordingBackend{}

	be := LimitBackend(rec, NewStaticLimiter(Limits{UploadKb: 100 * 1024}))
	rtest.Assert(t, be != backend.Backend(rec), "backend was not wrapped")

	fi, err := be.Save(context.TODO(), "artifact", bytes.NewReader(data), int64(len(data)))
	rtest.OK(t, err)
	rtest.Equals(t, int64(len(data)), fi.Size)
	rtest.Assert(t, bytes.Equal(data, rec.data), "data changed by the limiter")
}
