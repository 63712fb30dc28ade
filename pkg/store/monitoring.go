package store

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	imgmetrics "github.com/xraynetwork/imgcdn/pkg/metrics"
)

var (
	storeRequestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "imgcdn",
		Subsystem: "store",
		Name:      "request_duration_seconds",
		Help:      "Duration of image store requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{imgmetrics.LabelMethod, imgmetrics.LabelSuccess})
)

type instrumentedStore struct {
	next Store
}

// Instrument records the duration of every request to s.
func Instrument(s Store) Store {
	return &instrumentedStore{next: s}
}

func observe(method string, err error, begin time.Time) {
	storeRequestDuration.With(
		imgmetrics.LabelMethod, method,
		imgmetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(begin).Seconds())
}

func (i *instrumentedStore) Exists(ctx context.Context, key Key) (_ bool, err error) {
	defer func(begin time.Time) { observe("Exists", err, begin) }(time.Now())
	return i.next.Exists(ctx, key)
}

func (i *instrumentedStore) Upload(ctx context.Context, key Key, image []byte) (err error) {
	defer func(begin time.Time) { observe("Upload", err, begin) }(time.Now())
	return i.next.Upload(ctx, key, image)
}

func (i *instrumentedStore) Serve(ctx context.Context, key Key, size int, header http.Header) (_ *Rendition, err error) {
	defer func(begin time.Time) { observe("Serve", err, begin) }(time.Now())
	return i.next.Serve(ctx, key, size, header)
}

func (i *instrumentedStore) Delete(ctx context.Context, key Key) (err error) {
	defer func(begin time.Time) { observe("Delete", err, begin) }(time.Now())
	d, ok := i.next.(Deleter)
	if !ok {
		return errors.New("store does not support deleting images")
	}
	return d.Delete(ctx, key)
}
