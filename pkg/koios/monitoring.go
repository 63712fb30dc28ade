package koios

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	imgmetrics "github.com/xraynetwork/imgcdn/pkg/metrics"
)

var (
	lookupDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "imgcdn",
		Subsystem: "koios",
		Name:      "lookup_duration_seconds",
		Help:      "Duration of asset lookups in the chain index, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{imgmetrics.LabelNetwork, imgmetrics.LabelSuccess})
)

type instrumentedLookup struct {
	next asset.Lookup
}

// Instrument records the duration of every lookup made through l.
func Instrument(l asset.Lookup) asset.Lookup {
	return &instrumentedLookup{next: l}
}

func (i *instrumentedLookup) FetchAsset(ctx context.Context, network asset.Network, fingerprint string) (_ asset.Record, err error) {
	defer func(begin time.Time) {
		lookupDuration.With(
			imgmetrics.LabelNetwork, string(network),
			imgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.next.FetchAsset(ctx, network, fingerprint)
}
