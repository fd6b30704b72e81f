package zarr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const HTTPStoreType = "HTTPStore"

// HTTPStore reads a zarr hierarchy published over HTTP, e.g. from object
// storage. It is read-only. Transient server errors are retried by the
// HTTP client; a 404 maps to ErrNotfound so missing chunks read as the
// fill value.
type HTTPStore struct {
	base   string
	client *retryablehttp.Client
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore creates a store rooted at base. client may be nil, in which
// case a quiet retrying client with tracing on its transport is used.
func NewHTTPStore(base string, client *retryablehttp.Client) *HTTPStore {
	if client == nil {
		client = retryablehttp.NewClient()
		client.Logger = nil
		client.RetryMax = 3
		client.HTTPClient.Transport = otelhttp.NewTransport(client.HTTPClient.Transport)
	}
	return &HTTPStore{
		base:   strings.TrimSuffix(base, "/"),
		client: client,
	}
}

func (s *HTTPStore) Type() string { return HTTPStoreType }

func (s *HTTPStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.base+"/"+key, nil)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		res.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotfound, key)
	case res.StatusCode < 200 || res.StatusCode > 299:
		res.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", key, res.Status)
	}
	return res.Body, nil
}

func (s *HTTPStore) Put(ctx context.Context, key string, val io.Reader) error {
	return fmt.Errorf("%w: %s", ErrReadOnly, s.base)
}
