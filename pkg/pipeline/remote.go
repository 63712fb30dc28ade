package pipeline

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/xraynetwork/imgcdn/pkg/http/httperror"
)

func fetchingRemote(ctx context.Context, r *run) (stateFn, *Outcome) {
	r.enter(FetchingRemote)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ref.Locator, nil)
	if err != nil {
		return r.notFound(RemoteFetchFailure, errors.Wrap(err, "constructing request"))
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return r.notFound(RemoteFetchFailure, errors.Wrapf(err, "fetching %s", r.ref.Source))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return r.notFound(RemoteFetchFailure, errors.Wrapf(httperror.FromResponse(resp), "fetching %s", r.ref.Source))
	}

	ceiling := r.Policy.ByteCeiling
	if resp.ContentLength > ceiling {
		r.logger.Log("info", "image too large for the store, passing it through", "length", resp.ContentLength)
		return nil, r.passthrough(resp, resp.Body)
	}

	// Read one byte more than fits, to tell an image of exactly the
	// ceiling from a larger one of unknown length.
	image, err := ioutil.ReadAll(io.LimitReader(resp.Body, ceiling+1))
	if err != nil {
		resp.Body.Close()
		return r.notFound(RemoteFetchFailure, errors.Wrapf(err, "reading %s", r.ref.Source))
	}
	if int64(len(image)) > ceiling {
		r.logger.Log("info", "image of undeclared length too large for the store, passing it through")
		return nil, r.passthrough(resp, readCloser{io.MultiReader(bytes.NewReader(image), resp.Body), resp.Body})
	}
	resp.Body.Close()
	r.image = image
	return uploading, nil
}

// passthrough serves the remote image as it is, bypassing the store.
func (r *run) passthrough(resp *http.Response, body io.ReadCloser) *Outcome {
	header := http.Header{}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		header.Set("Content-Type", ct)
	}
	if resp.ContentLength >= 0 {
		header.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	return &Outcome{
		State:      TooLarge,
		StatusCode: http.StatusOK,
		Header:     r.cacheHeaders(header, r.Policy.ServedMaxAge),
		Body:       body,
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}
