package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/cache"
	"github.com/xraynetwork/imgcdn/pkg/store"
)

const policyID = "f0ff48bbb7bbe9d59a40f1ce90e9e9d0ff5002ec48f232b49ca0fb9a"

type fakeLookup struct {
	rec   asset.Record
	err   error
	calls int32
}

func (l *fakeLookup) FetchAsset(ctx context.Context, network asset.Network, fingerprint string) (asset.Record, error) {
	atomic.AddInt32(&l.calls, 1)
	return l.rec, l.err
}

func (l *fakeLookup) Calls() int {
	return int(atomic.LoadInt32(&l.calls))
}

// cip25 builds a record whose minting metadata has image under the
// asset's ASCII name.
func cip25(name string, image interface{}) asset.Record {
	raw, _ := json.Marshal(map[string]interface{}{
		"721": map[string]interface{}{
			policyID: map[string]interface{}{
				name: map[string]interface{}{"image": image},
			},
		},
	})
	return asset.Record{PolicyID: policyID, AssetName: "50696321", AssetNameASCII: name, MintingTxMetadata: raw}
}

type fakeStore struct {
	mu      sync.Mutex
	images  map[string][]byte
	uploads int

	// forgetful stores never admit to holding anything.
	forgetful  bool
	existsErr  error
	uploadErr  error
	serveErrs  int // fail this many serves first
	serveCalls int
	status     int
}

func (s *fakeStore) Exists(ctx context.Context, key store.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.images[key.ID()]
	return ok && !s.forgetful, nil
}

func (s *fakeStore) Upload(ctx context.Context, key store.Key, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	if s.images == nil {
		s.images = map[string][]byte{}
	}
	s.images[key.ID()] = append([]byte(nil), image...)
	s.uploads++
	return nil
}

func (s *fakeStore) Serve(ctx context.Context, key store.Key, size int, header http.Header) (*store.Rendition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serveCalls++
	if s.serveErrs > 0 {
		s.serveErrs--
		return nil, store.ErrRenditionUnavailable
	}
	image, ok := s.images[key.ID()]
	if !ok {
		return nil, store.ErrRenditionUnavailable
	}
	status := http.StatusOK
	if s.status != 0 {
		status = s.status
	}
	return &store.Rendition{
		StatusCode: status,
		Header: http.Header{
			"Content-Type":            {"image/png"},
			"Content-Security-Policy": {"default-src 'none'"},
		},
		Body: ioutil.NopCloser(bytes.NewReader(image)),
	}, nil
}

func (s *fakeStore) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// remote is a RoundTripper serving canned responses by URL.
type remote struct {
	mu        sync.Mutex
	responses map[string]remoteResponse
	requested []string
}

type remoteResponse struct {
	status int
	body   string
	// length is the declared Content-Length; -1 for none.
	length int64
}

func (rt *remote) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.requested = append(rt.requested, req.URL.String())
	res, ok := rt.responses[req.URL.String()]
	if !ok {
		return nil, errors.New("dial tcp: no such host")
	}
	if res.status == 0 {
		res.status = http.StatusOK
	}
	return &http.Response{
		StatusCode:    res.status,
		Status:        http.StatusText(res.status),
		Header:        http.Header{"Content-Type": {"image/png"}},
		Body:          ioutil.NopCloser(strings.NewReader(res.body)),
		ContentLength: res.length,
		Request:       req,
	}, nil
}

type fakeCounter struct {
	release chan struct{}
	counted chan string
}

func (c *fakeCounter) Incr(ctx context.Context, k cache.Keyer) error {
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.counted <- k.Key()
	return nil
}

// stalling is a RoundTripper whose body yields prefix, then blocks
// until the request's context is done.
type stalling struct {
	prefix  string
	started chan struct{}
}

func (rt *stalling) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": {"image/png"}},
		Body:          ioutil.NopCloser(&stallingBody{ctx: req.Context(), prefix: []byte(rt.prefix), started: rt.started}),
		ContentLength: -1,
		Request:       req,
	}, nil
}

type stallingBody struct {
	ctx     context.Context
	prefix  []byte
	started chan struct{}
	once    sync.Once
}

func (b *stallingBody) Read(p []byte) (int, error) {
	if len(b.prefix) > 0 {
		n := copy(p, b.prefix)
		b.prefix = b.prefix[n:]
		return n, nil
	}
	b.once.Do(func() {
		if b.started != nil {
			close(b.started)
		}
	})
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}
