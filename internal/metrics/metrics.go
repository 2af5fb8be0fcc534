// Package metrics defines the optional Prometheus collectors around the
// engine's hot paths (spec SPEC_FULL §6.5). Nothing in this module opens a
// network listener or requires a Recorder to function; exposing the
// numbers over HTTP is the embedding process's job.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the collectors an Engine reports against. The zero value
// is not usable; construct one with New or NewNoop.
type Recorder struct {
	requestsChecked   *prometheus.CounterVec
	checkDuration     prometheus.Histogram
	regexEvictions    prometheus.Counter
	stylesheetRebuild prometheus.Counter
}

// New registers the engine's collectors into reg and returns a Recorder
// backed by them. Pass a fresh prometheus.NewRegistry() or
// prometheus.DefaultRegisterer; registration failures (duplicate
// collectors) are returned rather than panicking so callers can decide
// whether a second Engine in the same process shares a registry.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		requestsChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goblock_requests_checked_total",
			Help: "Total number of network requests evaluated, by match outcome.",
		}, []string{"outcome"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goblock_request_check_duration_seconds",
			Help:    "Latency of a single network request check.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12), // 1us to ~4.2s
		}),
		regexEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goblock_regex_cache_evictions_total",
			Help: "Total number of compiled regexes evicted from the idle regex cache.",
		}),
		stylesheetRebuild: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goblock_cosmetic_stylesheet_rebuilds_total",
			Help: "Total number of times the generic cosmetic stylesheet was rebuilt after invalidation.",
		}),
	}

	for _, c := range []prometheus.Collector{r.requestsChecked, r.checkDuration, r.regexEvictions, r.stylesheetRebuild} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewNoop returns a Recorder registered into a throwaway registry, for
// callers (and tests) that want the Engine's recorder hooks to stay live
// but unobserved, without wiring up real observability.
func NewNoop() *Recorder {
	r, err := New(prometheus.NewRegistry())
	if err != nil {
		// A fresh, private registry never collides; unreachable in practice.
		panic(err)
	}
	return r
}

// RecordCheck observes the outcome and latency of one CheckNetworkRequest
// call. outcome is a short label such as "blocked", "allowed", or
// "exception" — callers pick the taxonomy, this just counts it.
func (r *Recorder) RecordCheck(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.requestsChecked.WithLabelValues(outcome).Inc()
	r.checkDuration.Observe(d.Seconds())
}

// RecordRegexEviction increments the idle regex cache eviction counter.
func (r *Recorder) RecordRegexEviction() {
	if r == nil {
		return
	}
	r.regexEvictions.Inc()
}

// RecordStylesheetRebuild increments the cosmetic base-stylesheet rebuild
// counter.
func (r *Recorder) RecordStylesheetRebuild() {
	if r == nil {
		return
	}
	r.stylesheetRebuild.Inc()
}
