package middleware

import (
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
)

// Logging logs every request made through the wrapped transport.
type Logging struct {
	Logger    log.Logger
	Transport http.RoundTripper
}

func (t *Logging) RoundTrip(req *http.Request) (*http.Response, error) {
	begin := time.Now()
	res, err := t.Transport.RoundTrip(req)
	if err == nil {
		t.Logger.Log("method", req.Method, "url", req.URL.String(), "status", res.Status, "took", time.Since(begin))
	} else {
		t.Logger.Log("method", req.Method, "url", req.URL.String(), "err", err.Error())
	}
	return res, err
}
