package cloudflare

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/http/httperror"
	"github.com/xraynetwork/imgcdn/pkg/store"
)

const (
	accountID   = "acc123"
	accountHash = "hash456"
	token       = "s3cret"
)

var key = store.Key{Network: "mainnet", Class: asset.ClassMetadata, Fingerprint: "asset1abc"}

// fakeImages plays both the management API and the delivery network.
type fakeImages struct {
	mu      sync.Mutex
	images  map[string][]byte
	uploads int
	lastIMS string
}

func (f *fakeImages) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const api = "/client/v4/accounts/" + accountID + "/images/v1"
	switch {
	case strings.HasPrefix(r.URL.Path, "/delivery/"):
		f.deliver(w, r)
		return
	case r.Header.Get("Authorization") != "Bearer "+token:
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"errors":[{"code":10000,"message":"Authentication error"}],"messages":[],"result":null}`))
		return
	case r.Method == http.MethodPost && r.URL.Path == api:
		f.upload(w, r)
		return
	case strings.HasPrefix(r.URL.Path, api+"/"):
		id := strings.TrimPrefix(r.URL.Path, api+"/")
		if _, ok := f.images[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"errors":[{"code":5404,"message":"Image not found"}],"messages":[],"result":null}`))
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.images, id)
			w.Write([]byte(`{"success":true,"errors":[],"messages":[],"result":{}}`))
			return
		}
		w.Write([]byte(`{"success":true,"errors":[],"messages":[],"result":{"id":"` + id + `","filename":"asset1abc","uploaded":"2024-01-01T00:00:00Z","requireSignedURLs":false,"variants":[]}}`))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *fakeImages) upload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	data, _ := ioutil.ReadAll(file)
	id := r.FormValue("id")
	if _, ok := f.images[id]; ok {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"success":false,"errors":[{"code":5409,"message":"Resource already exists"}],"messages":[],"result":null}`))
		return
	}
	f.images[id] = data
	f.uploads++
	w.Write([]byte(`{"success":true,"errors":[],"messages":[],"result":{"id":"` + id + `"}}`))
}

func (f *fakeImages) deliver(w http.ResponseWriter, r *http.Request) {
	// /delivery/{hash}/{network}/{class}/{fingerprint}/{size}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/delivery/"), "/")
	if len(parts) != 5 || parts[0] != accountHash {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.lastIMS = r.Header.Get("If-Modified-Since")
	data, ok := f.images[strings.Join(parts[1:4], "/")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Security-Policy", "default-src 'none'")
	if f.lastIMS != "" {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("X-Size", parts[4])
	w.Write(data)
}

func newTestStore(t *testing.T) (*Store, *fakeImages) {
	fake := &fakeImages{images: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(Config{
		AccountID:   accountID,
		AccountHash: accountHash,
		APIToken:    token,
		APIURL:      srv.URL + "/client/v4",
		DeliveryURL: srv.URL + "/delivery",
		Client:      srv.Client(),
	})
	require.NoError(t, err)
	return s, fake
}

func TestStore_UploadExistsServe(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upload(ctx, key, []byte("png bytes")))
	assert.Equal(t, []byte("png bytes"), fake.images["mainnet/metadata/asset1abc"])

	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rend, err := s.Serve(ctx, key, 256, http.Header{"Accept": {"image/webp"}, "Connection": {"close"}})
	require.NoError(t, err)
	defer rend.Body.Close()
	body, _ := ioutil.ReadAll(rend.Body)
	assert.Equal(t, http.StatusOK, rend.StatusCode)
	assert.Equal(t, "png bytes", string(body))
	assert.Equal(t, "256", rend.Header.Get("X-Size"))
}

func TestStore_UploadTwice(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, key, []byte("one")))
	require.NoError(t, s.Upload(ctx, key, []byte("two")))
	assert.Equal(t, 1, fake.uploads)
}

func TestStore_UploadRejected(t *testing.T) {
	fake := &fakeImages{images: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	s, err := New(Config{AccountID: accountID, AccountHash: accountHash, APIToken: "wrong", APIURL: srv.URL + "/client/v4", Client: srv.Client()})
	require.NoError(t, err)

	err = s.Upload(context.Background(), key, []byte("png"))
	var apiErr *httperror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestStore_ServeNotModified(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, key, []byte("png")))

	rend, err := s.Serve(ctx, key, 64, http.Header{"If-Modified-Since": {"Mon, 01 Jan 2024 00:00:00 GMT"}})
	require.NoError(t, err)
	rend.Body.Close()
	assert.Equal(t, http.StatusNotModified, rend.StatusCode)
	assert.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", fake.lastIMS)
}

func TestStore_ServeMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Serve(context.Background(), key, 64, nil)
	assert.True(t, errors.Is(err, store.ErrRenditionUnavailable))
}

func TestStore_Delete(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, key, []byte("png")))
	require.NoError(t, s.Delete(ctx, key))
	assert.Empty(t, fake.images)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew_RequiresAccount(t *testing.T) {
	_, err := New(Config{APIToken: token})
	assert.Error(t, err)
}
