package zarr

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/qri-io/tiled-go/logger"
)

// RetryStore retries failed reads of the store it wraps with exponential
// backoff. Missing keys and cancelled contexts are not retried. The tiling
// engine never retries a tile read itself; wrapping the store is how
// callers opt into retries.
type RetryStore struct {
	Store
	policy func() backoff.BackOff
	log    logger.Logger
}

// NewRetryStore wraps s. policy builds a fresh backoff for every Get; nil
// uses exponential backoff giving up after 30 seconds.
func NewRetryStore(s Store, policy func() backoff.BackOff, log logger.Logger) *RetryStore {
	if policy == nil {
		policy = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 30 * time.Second
			return b
		}
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &RetryStore{Store: s, policy: policy, log: log}
}

func (s *RetryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	attempt := 1
	err := backoff.Retry(func() error {
		r, err := s.Store.Get(ctx, key)
		switch {
		case err == nil:
			rc = r
			return nil
		case errors.Is(err, ErrNotfound), ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		s.log.WarnWithContext(ctx, "retrying store read",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Error(err))
		attempt++
		return err
	}, backoff.WithContext(s.policy(), ctx))
	if err != nil {
		return nil, err
	}
	return rc, nil
}
