package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coursepilot"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// StoreOperations counts document store calls by operation and outcome
	// (ok, absent, storage_fault, codec_fault).
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "store_operations_total", Help: "Document store operations by op and result."},
		[]string{"op", "result"},
	)
	StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "store_operation_duration_seconds", Help: "Latency of document store operations.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "document_cache_hits_total", Help: "Document reads served from the in-process cache."},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "document_cache_misses_total", Help: "Document reads that went to the store."},
	)

	Completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "recommend_completions_total", Help: "Completion calls made for recommendations by result."},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// RegisterCollectors registers every collector with reg. Only the first call
// has an effect, so tests and binaries can both call it.
func RegisterCollectors(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(RateLimitAllowed)
		reg.MustRegister(RateLimitRejected)
		reg.MustRegister(StoreOperations)
		reg.MustRegister(StoreDuration)
		reg.MustRegister(CacheHits)
		reg.MustRegister(CacheMisses)
		reg.MustRegister(Completions)
	})
}
