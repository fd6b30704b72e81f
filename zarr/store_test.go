package zarr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"

	tiled "github.com/qri-io/tiled-go"
)

func readString(t *testing.T, s Store, key string) string {
	t.Helper()
	rc, err := s.Get(t.Context(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestStores(t *testing.T) {
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, s := range []Store{NewMemoryStore(), local} {
		t.Run(s.Type(), func(t *testing.T) {
			require.NoError(t, s.Put(t.Context(), "a/b/.zattrs", strings.NewReader(`{"x":1}`)))
			require.Equal(t, `{"x":1}`, readString(t, s, "a/b/.zattrs"))

			require.NoError(t, s.Put(t.Context(), "a/b/.zattrs", strings.NewReader(`{}`)))
			require.Equal(t, `{}`, readString(t, s, "a/b/.zattrs"), "put replaces")

			_, err := s.Get(t.Context(), "a/c")
			require.ErrorIs(t, err, ErrNotfound)

			ctx, cancel := context.WithCancel(t.Context())
			cancel()
			_, err = s.Get(ctx, "a/b/.zattrs")
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

// serveStore publishes a store over HTTP the way a static file server
// would, answering 404 for missing keys.
func serveStore(t *testing.T, s Store, failures *atomic.Int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures != nil && failures.Add(-1) >= 0 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		rc, err := s.Get(r.Context(), strings.TrimPrefix(r.URL.Path, "/"))
		if errors.Is(err, ErrNotfound) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rc.Close()
		_, _ = io.Copy(w, rc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quietClient(retries int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = nil
	c.RetryMax = retries
	c.RetryWaitMin = 0
	c.RetryWaitMax = 0
	return c
}

func TestHTTPStore(t *testing.T) {
	ctx := t.Context()
	mem := NewMemoryStore()
	shape := []int{9, 9}
	a, err := Create(ctx, mem, "remote", metaF8(shape, []int{4, 4}))
	require.NoError(t, err)
	require.NoError(t, a.WriteWindow(ctx, rowMajor(shape, tiled.Box(0, 9, 0, 5))))

	failures := &atomic.Int32{}
	srv := serveStore(t, mem, failures)
	hs := NewHTTPStore(srv.URL+"/", quietClient(2))
	require.Equal(t, HTTPStoreType, hs.Type())

	failures.Store(2)
	arr, err := Open(ctx, hs, "remote")
	require.NoError(t, err, "transient failures are retried")

	got, err := arr.ReadTile(ctx, tiled.Box(2, 7, 3, 7))
	require.NoError(t, err)
	want := rowMajor(shape, tiled.Box(2, 7, 3, 7))
	for i, v := range want.Data {
		// columns from 5 on were never written and read as fill
		if i%4 >= 2 {
			v = 0
		}
		require.Equal(t, v, got.Data[i], "cell %d", i)
	}

	_, err = hs.Get(ctx, "remote/9.9")
	require.ErrorIs(t, err, ErrNotfound)

	require.ErrorIs(t, hs.Put(ctx, "remote/0.0", strings.NewReader("")), ErrReadOnly)

	failures.Store(10)
	_, err = hs.Get(ctx, "remote/.zarray")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotfound)
}

// flakyStore fails the first failures reads of every key.
type flakyStore struct {
	Store
	failures int32
	calls    atomic.Int32
}

var errFlaky = errors.New("connection reset")

func (s *flakyStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.calls.Add(1) <= s.failures {
		return nil, errFlaky
	}
	return s.Store.Get(ctx, key)
}

func TestRetryStore(t *testing.T) {
	mem := NewMemoryStore()
	require.NoError(t, mem.Put(t.Context(), "k", strings.NewReader("v")))
	policy := func(n uint64) func() backoff.BackOff {
		return func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, n) }
	}

	t.Run("recovers", func(t *testing.T) {
		fs := &flakyStore{Store: mem, failures: 2}
		rs := NewRetryStore(fs, policy(5), nil)
		require.Equal(t, "v", readString(t, rs, "k"))
		require.EqualValues(t, 3, fs.calls.Load())
	})

	t.Run("gives up", func(t *testing.T) {
		fs := &flakyStore{Store: mem, failures: 100}
		rs := NewRetryStore(fs, policy(1), nil)
		_, err := rs.Get(t.Context(), "k")
		require.ErrorIs(t, err, errFlaky)
		require.EqualValues(t, 2, fs.calls.Load())
	})

	t.Run("missing keys are final", func(t *testing.T) {
		fs := &flakyStore{Store: mem}
		rs := NewRetryStore(fs, policy(5), nil)
		_, err := rs.Get(t.Context(), "nope")
		require.ErrorIs(t, err, ErrNotfound)
		require.EqualValues(t, 1, fs.calls.Load())
	})

	t.Run("puts pass through", func(t *testing.T) {
		rs := NewRetryStore(mem, nil, nil)
		require.NoError(t, rs.Put(t.Context(), "k2", strings.NewReader("w")))
		require.Equal(t, "w", readString(t, mem, "k2"))
		require.Equal(t, MemoryStoreType, rs.Type())
	})
}

func TestPath(t *testing.T) {
	p := NewPath(`\foo//bar/`)
	require.Equal(t, Path{"foo", "bar"}, p)
	require.Equal(t, "foo/bar/baz/0.0", p.Join("baz", "0.0").String())

	parent, last := p.Split()
	require.Equal(t, "foo", parent.String())
	require.Equal(t, "bar", last)

	_, last = NewPath("").Split()
	require.Empty(t, last)
}
