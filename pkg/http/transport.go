package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	imgerr "github.com/xraynetwork/imgcdn/pkg/errors"
)

// NewRouter names the routes of the public API. Handlers are attached
// by the server.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	// An empty fingerprint must not be cleaned away into a redirect.
	r.SkipClean(true)

	r.NewRoute().Name(Healthz).Path("/healthz")
	r.NewRoute().Name(Image).Path("/cdn/{network}/{class}/{fingerprint}/{size:[^/]*}")
	r.NewRoute().Name(ImageWithoutSize).Path("/cdn/{network}/{class}/{fingerprint}")

	return r
}

// MakeURL builds the URL of a named route under endpoint, filling in
// the route's variables from pairs of name and value.
func MakeURL(endpoint string, router *mux.Router, routeName string, urlParams ...string) (*url.URL, error) {
	if len(urlParams)%2 != 0 {
		panic("urlParams must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	routeURL, err := route.URLPath(urlParams...)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	endpointURL.Path = strings.TrimRight(endpointURL.Path, "/") + routeURL.Path
	return endpointURL, nil
}

func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	// Clients that understand JSON errors say so; everyone else, image
	// tags included, gets the error text.
	if len(r.Header.Get("Accept")) > 0 {
		switch negotiateContentType(r, []string{"text/plain", "application/json"}) {
		case "application/json":
			body, encodeErr := json.Marshal(err)
			if encodeErr != nil {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "Error encoding error response: %s\n\nOriginal error: %s", encodeErr.Error(), err.Error())
				return
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(code)
			w.Write(body)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprint(w, err.Error())
}

// ErrorResponse writes err with the status its type calls for. Every
// error that isn't one of ours is a server error.
func ErrorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	var outErr *imgerr.Error
	if !errors.As(apiError, &outErr) {
		outErr = imgerr.CoverAllError(apiError)
	}
	var code int
	switch outErr.Type {
	case imgerr.Missing, imgerr.User:
		// Nothing here is worth more than a not-found to a caller.
		code = http.StatusNotFound
	default:
		code = http.StatusInternalServerError
	}
	WriteError(w, r, code, outErr)
}
