/*
Package server is the public HTTP front door: it routes image requests
to the resolution pipeline and writes its outcomes, with CORS on every
response.
*/
package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/weaveworks/common/middleware"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/config"
	transport "github.com/xraynetwork/imgcdn/pkg/http"
	imgmetrics "github.com/xraynetwork/imgcdn/pkg/metrics"
	"github.com/xraynetwork/imgcdn/pkg/pipeline"
)

const preflightMaxAge = 86400

var preflightHeaders = []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}

var (
	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "imgcdn",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{imgmetrics.LabelMethod, imgmetrics.LabelRoute, "status_code", "ws"})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}

// Resolver is what the server needs of the pipeline.
type Resolver interface {
	Handle(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

type HTTPServer struct {
	resolver Resolver
	policy   *config.Policy
	logger   log.Logger
}

// NewHandler attaches handlers to the routes of r and wraps them in
// method filtering, CORS and instrumentation. metrics, if not nil, is
// served under /metrics.
func NewHandler(res Resolver, policy *config.Policy, r *mux.Router, logger log.Logger, metrics http.Handler) http.Handler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := HTTPServer{resolver: res, policy: policy, logger: logger}

	r.Get(transport.Healthz).HandlerFunc(s.Healthz)
	r.Get(transport.Image).HandlerFunc(s.Image)
	r.Get(transport.ImageWithoutSize).HandlerFunc(s.ImageWithoutSize)
	if metrics != nil {
		r.NewRoute().Name(transport.Metrics).Path("/metrics").Handler(metrics)
	}
	// Anything else is a path we don't serve. This must come last.
	r.NewRoute().Name("NotFound").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		transport.WriteError(w, req, http.StatusNotFound, transport.ErrAPINotFound)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: transport.AllowedMethods,
		AllowedHeaders: preflightHeaders,
		MaxAge:         preflightMaxAge,
	})

	return middleware.Instrument{
		RouteMatcher: r,
		Duration:     requestDuration,
	}.Wrap(allowAnyOrigin(c.Handler(filterMethods(r))))
}

// allowAnyOrigin marks every response as readable from any origin,
// whether or not the request said where it came from.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// filterMethods answers OPTIONS itself and refuses methods we don't
// serve, on any path. Preflights carrying an origin are answered by the
// CORS handler before they get here.
func filterMethods(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", strings.Join(transport.AllowedMethods, ", "))
			h.Set("Access-Control-Max-Age", "86400")
			h.Set("Access-Control-Allow-Headers", strings.Join(preflightHeaders, ", "))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet, http.MethodHead, http.MethodPost:
			next.ServeHTTP(w, r)
		default:
			transport.WriteError(w, r, http.StatusMethodNotAllowed, transport.ErrMethodNotAllowed)
		}
	})
}

func (s HTTPServer) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// ImageWithoutSize answers paths that would be an image request but
// for the size.
func (s HTTPServer) ImageWithoutSize(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.target(mux.Vars(r)); !ok {
		transport.WriteError(w, r, http.StatusNotFound, transport.ErrAPINotFound)
		return
	}
	transport.WriteError(w, r, http.StatusNotFound, transport.ErrSizeNotFound)
}

func (s HTTPServer) Image(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req, ok := s.target(vars)
	if !ok {
		transport.WriteError(w, r, http.StatusNotFound, transport.ErrAPINotFound)
		return
	}
	size, ok := s.policy.ParseSize(req.Class, vars["size"])
	if !ok {
		transport.WriteError(w, r, http.StatusNotFound, transport.ErrSizeNotFound)
		return
	}
	req.Size = size
	req.Header = r.Header.Clone()

	out, err := s.resolver.Handle(r.Context(), req)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	s.writeOutcome(w, r, out)
}

// target reads network, class and fingerprint from the path, if they
// are ones we serve.
func (s HTTPServer) target(vars map[string]string) (pipeline.Request, bool) {
	req := pipeline.Request{
		Network:     asset.Network(vars["network"]),
		Class:       asset.Class(vars["class"]),
		Fingerprint: vars["fingerprint"],
	}
	ok := s.policy.AllowsNetwork(req.Network) && s.policy.AllowsClass(req.Class) && req.Fingerprint != ""
	return req, ok
}

func (s HTTPServer) writeOutcome(w http.ResponseWriter, r *http.Request, out *pipeline.Outcome) {
	if out.Body != nil {
		defer out.Body.Close()
	}
	for name, values := range out.Header {
		w.Header()[name] = values
	}
	if out.State == pipeline.NotFound {
		w.Header().Del("Content-Length")
		transport.WriteError(w, r, http.StatusNotFound, transport.ErrImageNotFound)
		return
	}

	w.WriteHeader(out.StatusCode)
	if out.Body == nil || r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, out.Body); err != nil {
		// Too late to tell the caller; the connection is cut short.
		s.logger.Log("err", errors.Wrap(err, "streaming image"), "path", r.URL.Path)
	}
}
