package store

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/xraynetwork/imgcdn/pkg/cache"
)

var (
	present = []byte{1}
	// tombstone marks a key that was deleted before its memo expired.
	tombstone = []byte{0}
)

type memo struct {
	next   Store
	cache  cache.Client
	ttl    time.Duration
	logger log.Logger
}

// Memoize remembers positive answers from next in c for ttl, so that
// repeat requests for a stored image don't have to ask the CDN's
// management API. A negative answer is never remembered: the image
// may be uploaded at any moment.
func Memoize(next Store, c cache.Client, ttl time.Duration, logger log.Logger) Store {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &memo{next: next, cache: c, ttl: ttl, logger: logger}
}

func (m *memo) Exists(ctx context.Context, key Key) (bool, error) {
	v, deadline, err := m.cache.GetKey(cache.NewExistsKey(key.ID()))
	if err == nil && len(v) == 1 && v[0] == present[0] && time.Now().Before(deadline) {
		return true, nil
	}
	if err != nil && err != cache.ErrNotCached {
		m.logger.Log("err", errors.Wrap(err, "reading existence memo"), "key", key)
	}
	ok, err := m.next.Exists(ctx, key)
	if ok {
		m.remember(key, present)
	}
	return ok, err
}

func (m *memo) Upload(ctx context.Context, key Key, image []byte) error {
	if err := m.next.Upload(ctx, key, image); err != nil {
		return err
	}
	m.remember(key, present)
	return nil
}

func (m *memo) Serve(ctx context.Context, key Key, size int, header http.Header) (*Rendition, error) {
	return m.next.Serve(ctx, key, size, header)
}

func (m *memo) Delete(ctx context.Context, key Key) error {
	d, ok := m.next.(Deleter)
	if !ok {
		return errors.New("store does not support deleting images")
	}
	if err := d.Delete(ctx, key); err != nil {
		return err
	}
	m.remember(key, tombstone)
	return nil
}

func (m *memo) remember(key Key, v []byte) {
	if err := m.cache.SetKey(cache.NewExistsKey(key.ID()), time.Now().Add(m.ttl), v); err != nil {
		m.logger.Log("err", errors.Wrap(err, "writing existence memo"), "key", key)
	}
}
