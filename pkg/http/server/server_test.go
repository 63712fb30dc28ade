package server

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraynetwork/imgcdn/pkg/config"
	transport "github.com/xraynetwork/imgcdn/pkg/http"
	"github.com/xraynetwork/imgcdn/pkg/pipeline"
)

const fp = "asset1rjklcrnsdzqp65wjgrg55sy9723kw09mlgvlc3"

type fakeResolver struct {
	out  *pipeline.Outcome
	err  error
	reqs []pipeline.Request
}

func (f *fakeResolver) Handle(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func served(body string) *pipeline.Outcome {
	h := http.Header{}
	h.Set("Content-Type", "image/png")
	pipeline.CacheHeaders(h, config.DefaultPolicy().ServedMaxAge, time.Now())
	return &pipeline.Outcome{
		State:      pipeline.Served,
		StatusCode: http.StatusOK,
		Header:     h,
		Body:       ioutil.NopCloser(strings.NewReader(body)),
	}
}

func newHandler(res *fakeResolver) http.Handler {
	return NewHandler(res, config.DefaultPolicy(), transport.NewRouter(), nil,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }))
}

func do(h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestImage_Served(t *testing.T) {
	res := &fakeResolver{out: served("png bytes")}
	rec := do(newHandler(res), "GET", "/cdn/mainnet/metadata/"+fp+"/256", http.Header{"If-None-Match": {`"etag"`}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png bytes", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=604800000", rec.Header().Get("Cache-Control"))

	require.Len(t, res.reqs, 1)
	req := res.reqs[0]
	assert.Equal(t, pipeline.Request{
		Network: "mainnet", Class: "metadata", Fingerprint: fp, Size: 256, Header: req.Header,
	}, req)
	assert.Equal(t, `"etag"`, req.Header.Get("If-None-Match"))
}

func TestImage_PostAndHead(t *testing.T) {
	res := &fakeResolver{out: served("png")}
	rec := do(newHandler(res), "POST", "/cdn/preview/registry/"+fp+"/512", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	res.out = served("png")
	rec = do(newHandler(res), "HEAD", "/cdn/preview/registry/"+fp+"/512", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Len(t, res.reqs, 2)
}

func TestImage_NotFound(t *testing.T) {
	h := http.Header{}
	pipeline.CacheHeaders(h, config.DefaultPolicy().NotFoundMaxAge, time.Now())
	res := &fakeResolver{out: &pipeline.Outcome{State: pipeline.NotFound, StatusCode: http.StatusNotFound, Header: h}}

	rec := do(newHandler(res), "GET", "/cdn/mainnet/metadata/"+fp+"/64", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "404. Image not found! Check if the request is correct", rec.Body.String())
	assert.Equal(t, "public, max-age=6048000", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(newHandler(res), "GET", "/cdn/mainnet/metadata/"+fp+"/64", http.Header{"Accept": {"application/json"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing", body["type"])
}

func TestImage_NotModified(t *testing.T) {
	res := &fakeResolver{out: &pipeline.Outcome{State: pipeline.Served, StatusCode: http.StatusNotModified, Header: http.Header{"Etag": {`"x"`}}}}
	rec := do(newHandler(res), "GET", "/cdn/mainnet/metadata/"+fp+"/64", nil)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, `"x"`, rec.Header().Get("Etag"))
}

func TestImage_BadPaths(t *testing.T) {
	apiNotFound := "404. API not found. Check if the request is correct"
	sizeNotFound := "404. Image size not found! Check if the request is correct"
	for path, want := range map[string]string{
		"/api/mainnet/metadata/" + fp + "/64":   apiNotFound,
		"/cdn/testnet/metadata/" + fp + "/64":   apiNotFound,
		"/cdn/mainnet/avatar/" + fp + "/64":     apiNotFound,
		"/cdn/mainnet/metadata//64":             apiNotFound,
		"/":                                     apiNotFound,
		"/cdn/mainnet/metadata/" + fp + "/100":  sizeNotFound,
		"/cdn/mainnet/metadata/" + fp + "/064":  sizeNotFound,
		"/cdn/mainnet/registry/" + fp + "/1024": sizeNotFound,
		"/cdn/mainnet/metadata/" + fp + "/":     sizeNotFound,
		"/cdn/mainnet/metadata/" + fp:           sizeNotFound,
		"/cdn/testnet/metadata/" + fp:           apiNotFound,
	} {
		res := &fakeResolver{}
		rec := do(newHandler(res), "GET", path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, want, rec.Body.String(), path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Empty(t, res.reqs, path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	for _, method := range []string{"DELETE", "PUT", "PATCH"} {
		rec := do(newHandler(&fakeResolver{}), method, "/cdn/mainnet/metadata/"+fp+"/64", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "405. Method not allowed. Check if the request is correct", rec.Body.String())
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestOptions(t *testing.T) {
	res := &fakeResolver{}
	rec := do(newHandler(res), "OPTIONS", "/anything/at/all", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS, HEAD", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "Origin, X-Requested-With, Content-Type, Accept", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = do(newHandler(res), "OPTIONS", "/cdn/mainnet/metadata/"+fp+"/64", http.Header{
		"Origin":                        {"https://app.example"},
		"Access-Control-Request-Method": {"GET"},
	})
	assert.True(t, rec.Code >= 200 && rec.Code < 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, res.reqs)
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHandler(&fakeResolver{})
	assert.Equal(t, http.StatusNoContent, do(h, "GET", "/healthz", nil).Code)
	rec := do(h, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}
