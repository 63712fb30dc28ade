package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5
)

// RateLimiters keeps one limiter per upstream host, shared by every
// transport obtained for that host.
//
// A transport reacts to `HTTP 429 Too many requests` by halving the
// limit for its host, at most once per transport so that concurrent
// requests don't all back off. Any 2xx response nudges the limit back
// up towards RPS.
type RateLimiters struct {
	RPS     float64
	Burst   int
	Logger  log.Logger
	perHost map[string]*rate.Limiter
	mu      sync.Mutex
}

func (limiters *RateLimiters) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > limiters.RPS {
		return limiters.RPS
	}
	return limit
}

// limiter must be called with mu held.
func (limiters *RateLimiters) limiter(host string) *rate.Limiter {
	if limiters.perHost == nil {
		limiters.perHost = map[string]*rate.Limiter{}
	}
	rl, ok := limiters.perHost[host]
	if !ok {
		rl = rate.NewLimiter(rate.Limit(limiters.RPS), limiters.Burst)
		limiters.perHost[host] = rl
	}
	return rl
}

func (limiters *RateLimiters) adjust(host string, by float64, verb string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()

	rl := limiters.limiter(host)
	oldLimit := float64(rl.Limit())
	newLimit := limiters.clip(oldLimit * by)
	if oldLimit == newLimit {
		return
	}
	if limiters.Logger != nil {
		limiters.Logger.Log("info", verb+" rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	rl.SetLimit(rate.Limit(newLimit))
}

// BackOff reduces the limit for host.
func (limiters *RateLimiters) BackOff(host string) {
	limiters.adjust(host, 1/backOffBy, "reducing")
}

// Recover raises the limit for host back towards RPS.
func (limiters *RateLimiters) Recover(host string) {
	limiters.adjust(host, recoverBy, "increasing")
}

// Limit returns the current limit for host.
func (limiters *RateLimiters) Limit(host string) float64 {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	return float64(limiters.limiter(host).Limit())
}

// RoundTripper wraps rt so that requests to host are rate limited.
// A nil rt means http.DefaultTransport.
func (limiters *RateLimiters) RoundTripper(rt http.RoundTripper, host string) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	limiters.mu.Lock()
	rl := limiters.limiter(host)
	limiters.mu.Unlock()

	var reduceOnce sync.Once
	return &roundTripRateLimiter{
		rl: rl,
		tx: rt,
		slowDown: func() {
			reduceOnce.Do(func() { limiters.BackOff(host) })
		},
		speedUp: func() { limiters.Recover(host) },
	}
}

type roundTripRateLimiter struct {
	rl       *rate.Limiter
	tx       http.RoundTripper
	slowDown func()
	speedUp  func()
}

func (t *roundTripRateLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	// Wait fails straight away if the deadline would pass before a
	// token is available.
	if err := t.rl.Wait(r.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limited")
	}
	resp, err := t.tx.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		t.slowDown()
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		t.speedUp()
	}
	return resp, nil
}

// PerHost wraps rt so that each request is limited by the limiter of
// the host it is sent to. Every 429 backs off.
func (limiters *RateLimiters) PerHost(rt http.RoundTripper) http.RoundTripper {
	return &perHostRateLimiter{limiters: limiters, tx: rt}
}

type perHostRateLimiter struct {
	limiters *RateLimiters
	tx       http.RoundTripper
}

func (t *perHostRateLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	return t.limiters.RoundTripper(t.tx, r.URL.Host).RoundTrip(r)
}
