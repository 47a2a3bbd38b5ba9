package b2

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"testing"
	"time"

	"github.com/pushback/pushback/internal/backend"
	"github.com/pushback/pushback/internal/backend/test"
	"github.com/pushback/pushback/internal/errors"
	rtest "github.com/pushback/pushback/internal/test"
)

func newB2TestSuite() *test.Suite[Config] {
	var be *Backend

	return &test.Suite[Config]{
		NewConfig: func() (Config, error) {
			cfg, err := ParseConfig(os.Getenv("PUSHBACK_TEST_B2_REPOSITORY"))
			if err != nil {
				return Config{}, err
			}

			cfg.ApplyEnvironment("PUSHBACK_TEST_")
			cfg.Prefix = fmt.Sprintf("test-%d", time.Now().UnixNano())
			return *cfg, nil
		},

		Open: func(cfg Config) (backend.Backend, error) {
			b, err := Open(context.TODO(), cfg, http.DefaultTransport)
			if err != nil {
				return nil, err
			}
			be = b.(*Backend)
			return be, nil
		},

		Load: func(cfg Config, name string) ([]byte, error) {
			rd := be.bucket.Object(path.Join(cfg.Prefix, name)).NewReader(context.TODO())
			defer func() { _ = rd.Close() }()
			return io.ReadAll(rd)
		},
	}
}

func testVars(t testing.TB) {
	vars := []string{
		"PUSHBACK_TEST_B2_ACCOUNT_ID",
		"PUSHBACK_TEST_B2_ACCOUNT_KEY",
		"PUSHBACK_TEST_B2_REPOSITORY",
	}

	for _, v := range vars {
		if os.Getenv(v) == "" {
			t.Skipf("environment variable %v not set", v)
			return
		}
	}
}

func TestBackendB2(t *testing.T) {
	testVars(t)
	newB2TestSuite().RunTests(t)
}

func TestOpenMissingCredentials(t *testing.T) {
	t.Setenv("B2_ACCOUNT_ID", "")
	t.Setenv("B2_ACCOUNT_KEY", "")

	_, err := Open(context.TODO(), Config{Bucket: "bucketname"}, http.DefaultTransport)
	rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
}
