/*
Package pipeline resolves a request for an asset's image into a
response. It checks the image store first; on a miss it looks the
asset up, finds the image in its metadata, materializes it into the
store and serves the requested rendition from there.

Every failure along the way ends in the same NotFound outcome. The
cause is kept on the outcome for logging, but never shown to callers.
*/
package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	pkgerrors "github.com/pkg/errors"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/cache"
	"github.com/xraynetwork/imgcdn/pkg/config"
	imgerr "github.com/xraynetwork/imgcdn/pkg/errors"
	"github.com/xraynetwork/imgcdn/pkg/metadata"
	"github.com/xraynetwork/imgcdn/pkg/resolver"
	"github.com/xraynetwork/imgcdn/pkg/store"
)

const countTimeout = 5 * time.Second

var (
	ErrInvalidNetwork = &imgerr.Error{
		Type: imgerr.User,
		Err:  errors.New("network not served"),
		Help: "Images are only served for the configured networks.\n",
	}
	ErrInvalidClass = &imgerr.Error{
		Type: imgerr.User,
		Err:  errors.New("image class not served"),
		Help: "The image class must be \"metadata\" or \"registry\".\n",
	}
	ErrInvalidSize = &imgerr.Error{
		Type: imgerr.User,
		Err:  errors.New("image size not served"),
		Help: "The size must be one of those served for the image class.\n",
	}
	errNoRegistryLogo = errors.New("no logo in token registry")
)

// Request asks for the rendition of one asset's image at one size.
type Request struct {
	Network     asset.Network
	Class       asset.Class
	Fingerprint string
	Size        int
	// Header is passed on to the store when serving, so that
	// conditional requests work.
	Header http.Header
}

func (r Request) key() store.Key {
	return store.Key{Network: r.Network, Class: r.Class, Fingerprint: r.Fingerprint}
}

// Outcome is the result of a request. State is Served, TooLarge or
// NotFound. Header is complete, cache lifetime included. Body is nil for
// NotFound and 304 Not Modified; otherwise the caller must close it.
type Outcome struct {
	State      State
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	// Cause is why a NotFound came about.
	Cause error
	// Source names where the image was found, when it was looked for.
	Source string
}

// Pipeline holds the collaborators shared by every request. It keeps no
// state between requests.
type Pipeline struct {
	Policy *config.Policy
	Lookup asset.Lookup
	Store  store.Store
	// Client fetches remote images; nil means http.DefaultClient.
	Client *http.Client
	// Counter, if set, counts requests per network and class.
	Counter cache.Counter
	Logger  log.Logger
}

// Handle runs the resolution for req. The error is only for requests
// that ask for something never served: ErrInvalidNetwork,
// ErrInvalidClass or ErrInvalidSize. Any other failure is a NotFound
// outcome.
func (p *Pipeline) Handle(ctx context.Context, req Request) (*Outcome, error) {
	switch {
	case !p.Policy.AllowsNetwork(req.Network):
		return nil, ErrInvalidNetwork
	case !p.Policy.AllowsClass(req.Class):
		return nil, ErrInvalidClass
	case !p.Policy.AllowsSize(req.Class, req.Size):
		return nil, ErrInvalidSize
	}
	p.count(req)

	r := &run{
		Pipeline: p,
		req:      req,
		key:      req.key(),
		logger:   log.With(p.logger(), "key", req.key(), "size", req.Size),
	}
	begin := time.Now()
	out := r.execute(ctx)
	observeOutcome(req, out, begin)
	if out.State == NotFound {
		r.logger.Log("outcome", out.State, "err", out.Cause)
	} else {
		r.logger.Log("outcome", out.State, "status", out.StatusCode, "source", out.Source)
	}
	return out, nil
}

func (p *Pipeline) logger() log.Logger {
	if p.Logger == nil {
		return log.NewNopLogger()
	}
	return p.Logger
}

func (p *Pipeline) client() *http.Client {
	if p.Client == nil {
		return http.DefaultClient
	}
	return p.Client
}

// count never holds up the request it counts.
func (p *Pipeline) count(req Request) {
	if p.Counter == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
		defer cancel()
		if err := p.Counter.Incr(ctx, cache.NewUsageKey(string(req.Network), string(req.Class))); err != nil {
			p.logger().Log("err", pkgerrors.Wrap(err, "counting request"))
		}
	}()
}

// stateFn does the work of one state and returns the next, or a nil
// stateFn and the outcome once a terminal state is reached.
type stateFn func(ctx context.Context, r *run) (stateFn, *Outcome)

// run is the state of one request's resolution.
type run struct {
	*Pipeline
	req    Request
	key    store.Key
	logger log.Logger

	ref   resolver.Reference
	image []byte
	// hit is set while serving something the store said it had.
	hit bool
	// reresolved is set once a failed serve after a hit has sent us
	// back to resolving.
	reresolved bool
}

func (r *run) execute(ctx context.Context) *Outcome {
	state := checkingCache
	for {
		next, out := state(ctx, r)
		if out != nil {
			out.Source = r.ref.Source
			return out
		}
		state = next
	}
}

func (r *run) enter(s State) {
	r.logger.Log("state", s)
}

func (r *run) notFound(kind Kind, err error) (stateFn, *Outcome) {
	return nil, &Outcome{
		State:      NotFound,
		StatusCode: http.StatusNotFound,
		Header:     r.cacheHeaders(http.Header{}, r.Policy.NotFoundMaxAge),
		Cause:      &StepError{Kind: kind, Err: err},
	}
}

func checkingCache(ctx context.Context, r *run) (stateFn, *Outcome) {
	r.enter(CheckingCache)
	ok, err := r.Store.Exists(ctx, r.key)
	if err != nil {
		// The store being unavailable only costs us a resolution.
		r.logger.Log("err", &StepError{Kind: CacheMiss, Err: err})
		return resolvingSource, nil
	}
	if !ok {
		return resolvingSource, nil
	}
	r.hit = true
	return serving, nil
}

func resolvingSource(ctx context.Context, r *run) (stateFn, *Outcome) {
	r.enter(ResolvingSource)
	rec, err := r.Lookup.FetchAsset(ctx, r.req.Network, r.req.Fingerprint)
	if err != nil {
		return r.notFound(LookupFailure, err)
	}

	if r.req.Class == asset.ClassRegistry {
		logo := rec.RegistryLogo()
		if logo == "" {
			return r.notFound(NoImageFound, errNoRegistryLogo)
		}
		r.ref = resolver.Reference{Kind: resolver.EmbeddedBase64, Locator: logo, Source: "registry.logo"}
		return decodingEmbedded, nil
	}

	cip68 := metadata.DecodeTopLevel(rec.CIP68Metadata, r.logger)
	res := &resolver.Resolver{Gateway: r.Policy.IPFSGateway}
	ref, err := res.Resolve(rec, cip68)
	switch {
	case errors.Is(err, resolver.ErrNoImageFound):
		return r.notFound(NoImageFound, err)
	case err != nil:
		return r.notFound(UnsupportedLocatorFormat, err)
	}
	r.ref = ref
	if c, ok := ref.CID(); ok {
		r.logger.Log("source", ref.Source, "cid", c)
	} else {
		r.logger.Log("source", ref.Source, "kind", ref.Kind)
	}
	if ref.Kind == resolver.EmbeddedBase64 {
		return decodingEmbedded, nil
	}
	return fetchingRemote, nil
}

func decodingEmbedded(ctx context.Context, r *run) (stateFn, *Outcome) {
	r.enter(DecodingEmbedded)
	var err error
	if r.req.Class == asset.ClassRegistry {
		r.image, err = decodeBase64(r.ref.Locator)
	} else {
		r.image, err = decodeDataURI(r.ref.Locator)
	}
	if err == nil && len(r.image) == 0 {
		err = errors.New("embedded image is empty")
	}
	if err != nil {
		return r.notFound(UnsupportedLocatorFormat, pkgerrors.Wrap(err, r.ref.Source))
	}
	return uploading, nil
}

func uploading(ctx context.Context, r *run) (stateFn, *Outcome) {
	r.enter(Uploading)
	if err := r.Store.Upload(ctx, r.key, r.image); err != nil {
		return r.notFound(UploadFailure, err)
	}
	r.image = nil
	return serving, nil
}

func serving(ctx context.Context, r *run) (stateFn, *Outcome) {
	r.enter(Serving)
	rend, err := r.Store.Serve(ctx, r.key, r.req.Size, r.req.Header)
	if err != nil {
		if r.hit && !r.reresolved {
			// The store claimed the image but can't serve it; make it
			// again from source.
			r.logger.Log("err", &StepError{Kind: ServeFailure, Err: err}, "retry", "resolving")
			r.hit, r.reresolved = false, true
			return resolvingSource, nil
		}
		return r.notFound(ServeFailure, err)
	}

	header := rend.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Del("Content-Security-Policy")
	out := &Outcome{State: Served, StatusCode: rend.StatusCode, Header: header, Body: rend.Body}
	if rend.StatusCode == http.StatusNotModified {
		if rend.Body != nil {
			rend.Body.Close()
		}
		out.Body = nil
		return nil, out
	}
	r.cacheHeaders(header, r.Policy.ServedMaxAge)
	return nil, out
}

// cacheHeaders sets the lifetime of a response in h and returns h.
func (r *run) cacheHeaders(h http.Header, maxAge time.Duration) http.Header {
	return CacheHeaders(h, maxAge, time.Now())
}

// CacheHeaders sets Cache-Control and Expires for a public response
// that lives for maxAge from now.
func CacheHeaders(h http.Header, maxAge time.Duration, now time.Time) http.Header {
	h.Set("Cache-Control", "public, max-age="+strconv.FormatInt(int64(maxAge/time.Second), 10))
	h.Set("Expires", now.Add(maxAge).UTC().Format(http.TimeFormat))
	return h
}
