package pipeline

import (
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	imgmetrics "github.com/xraynetwork/imgcdn/pkg/metrics"
)

var (
	resolutionDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "imgcdn",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Duration of image requests through the pipeline, in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{imgmetrics.LabelNetwork, imgmetrics.LabelClass, imgmetrics.LabelOutcome})
	failures = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "imgcdn",
		Subsystem: "pipeline",
		Name:      "failures_total",
		Help:      "Image requests that ended not found, by the step that failed.",
	}, []string{imgmetrics.LabelClass, imgmetrics.LabelKind})
)

func observeOutcome(req Request, out *Outcome, begin time.Time) {
	resolutionDuration.With(
		imgmetrics.LabelNetwork, string(req.Network),
		imgmetrics.LabelClass, string(req.Class),
		imgmetrics.LabelOutcome, out.State.String(),
	).Observe(time.Since(begin).Seconds())
	if stepErr, ok := out.Cause.(*StepError); ok {
		failures.With(
			imgmetrics.LabelClass, string(req.Class),
			imgmetrics.LabelKind, stepErr.Kind.String(),
		).Add(1)
	}
}
