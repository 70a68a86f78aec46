// Package metrics exposes the Prometheus instrumentation surface for a
// running engine: counters for applied/rejected transitions broken down by
// consensus-error category, a histogram for block-apply latency, and
// cache hit/miss counters. Every metric is registered against a
// caller-supplied *prometheus.Registry rather than the package-level
// default, so an embedder can run more than one instance in-process
// without colliding metric names.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/driveplatform/drive/pkg/consensuserrors"
)

// Recorder owns every metric an Engine/Host reports during block
// processing.
type Recorder struct {
	transitionsApplied  prometheus.Counter
	transitionsRejected *prometheus.CounterVec
	applyLatency        prometheus.Histogram
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
}

// New registers Drive's metrics against reg and returns a Recorder ready
// to use. Calling New twice against the same Registry panics, the same as
// any other MustRegister collision - callers own one Recorder per Registry.
func New(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		transitionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_transitions_applied_total",
			Help: "State transitions successfully applied.",
		}),
		transitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_transitions_rejected_total",
			Help: "State transitions rejected, labeled by consensus error category.",
		}, []string{"category"}),
		applyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drive_block_apply_duration_seconds",
			Help:    "Wall-clock time to apply one block's transitions.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_contract_cache_hits_total",
			Help: "Contract-fetch-info cache lookups served from cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_contract_cache_misses_total",
			Help: "Contract-fetch-info cache lookups that fell through to the store.",
		}),
	}
	reg.MustRegister(r.transitionsApplied, r.transitionsRejected, r.applyLatency, r.cacheHits, r.cacheMisses)
	return r
}

// RecordApplied increments the applied-transitions counter.
func (r *Recorder) RecordApplied() {
	r.transitionsApplied.Inc()
}

// RecordRejected increments the rejected-transitions counter under err's
// consensuserrors category, or "unknown" if err isn't one.
func (r *Recorder) RecordRejected(err error) {
	category := "unknown"
	if ce, ok := err.(*consensuserrors.Error); ok {
		category = string(ce.Category)
	}
	r.transitionsRejected.WithLabelValues(category).Inc()
}

// ObserveApplyDuration records how long a block took to apply, measured
// from started.
func (r *Recorder) ObserveApplyDuration(started time.Time) {
	r.applyLatency.Observe(time.Since(started).Seconds())
}

// RecordCacheHit and RecordCacheMiss track the contract-fetch-info cache's
// hit rate.
func (r *Recorder) RecordCacheHit()  { r.cacheHits.Inc() }
func (r *Recorder) RecordCacheMiss() { r.cacheMisses.Inc() }
