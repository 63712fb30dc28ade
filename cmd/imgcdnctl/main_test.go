// Shared main test code
package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	testFingerprint = "asset1rjklcrnsdzqp65wjgrg55sy9723kw09mlgvlc3"
	testPolicy      = "b7761c472eef3b6e0505441efaf940892bb59c01be96070b0a0a89b3"
	testAssetName   = "000de1404e696b65"
	testAccount     = "acc123"
	testToken       = "s3cret"
)

// fakeBackends plays Koios and the Cloudflare Images API.
type fakeBackends struct {
	mu     sync.Mutex
	info   string
	images map[string]bool
}

func (f *fakeBackends) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const api = "/client/v4/accounts/" + testAccount + "/images/v1/"
	switch {
	case r.URL.Path == "/koios/asset_list":
		if r.URL.Query().Get("fingerprint") != "eq."+testFingerprint {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"policy_id":"` + testPolicy + `","asset_name":"` + testAssetName + `","fingerprint":"` + testFingerprint + `"}]`))
	case r.URL.Path == "/koios/asset_info":
		w.Write([]byte(f.info))
	case strings.HasPrefix(r.URL.Path, api):
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"errors":[{"code":10000,"message":"Authentication error"}],"messages":[],"result":null}`))
			return
		}
		id := strings.TrimPrefix(r.URL.Path, api)
		if !f.images[id] {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"errors":[{"code":5404,"message":"Image not found"}],"messages":[],"result":null}`))
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.images, id)
			w.Write([]byte(`{"success":true,"errors":[],"messages":[],"result":{}}`))
			return
		}
		w.Write([]byte(`{"success":true,"errors":[],"messages":[],"result":{"id":"` + id + `","filename":"x","uploaded":"2024-01-01T00:00:00Z","requireSignedURLs":false,"variants":[]}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeBackends(t *testing.T) (*fakeBackends, string) {
	fake := &fakeBackends{images: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv.URL
}

// execute runs imgcdnctl with args, returning what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd := newRoot().Command()
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func cloudflareFlags(base string) []string {
	return []string{
		"--cloudflare-account-id=" + testAccount,
		"--cloudflare-account-hash=hash",
		"--cloudflare-api-token=" + testToken,
		"--cloudflare-api-url=" + base + "/client/v4",
	}
}
