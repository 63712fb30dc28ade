package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	imgmetrics "github.com/xraynetwork/imgcdn/pkg/metrics"
)

var (
	cacheRequestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "imgcdn",
		Subsystem: "cache",
		Name:      "request_duration_seconds",
		Help:      "Duration of cache requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{imgmetrics.LabelMethod, imgmetrics.LabelSuccess})
)

func observe(method string, err error, begin time.Time) {
	cacheRequestDuration.With(
		imgmetrics.LabelMethod, method,
		imgmetrics.LabelSuccess, fmt.Sprint(err == nil || err == ErrNotCached),
	).Observe(time.Since(begin).Seconds())
}

type instrumentedClient struct {
	next Client
}

// InstrumentClient records the duration of every request to c. A miss
// counts as a successful request.
func InstrumentClient(c Client) Client {
	return &instrumentedClient{
		next: c,
	}
}

func (i *instrumentedClient) GetKey(k Keyer) (_ []byte, _ time.Time, err error) {
	defer func(begin time.Time) { observe("GetKey", err, begin) }(time.Now())
	return i.next.GetKey(k)
}

func (i *instrumentedClient) SetKey(k Keyer, d time.Time, v []byte) (err error) {
	defer func(begin time.Time) { observe("SetKey", err, begin) }(time.Now())
	return i.next.SetKey(k, d, v)
}

type instrumentedCounter struct {
	next Counter
}

func InstrumentCounter(c Counter) Counter {
	return &instrumentedCounter{next: c}
}

func (i *instrumentedCounter) Incr(ctx context.Context, k Keyer) (err error) {
	defer func(begin time.Time) { observe("Incr", err, begin) }(time.Now())
	return i.next.Incr(ctx, k)
}
