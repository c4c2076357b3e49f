package metrics

import "github.com/prometheus/client_golang/prometheus"

// Remote collaborator Prometheus metrics: embedding, generation, vector store.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursekb",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coursekb",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursekb",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"model", "type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursekb",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursekb",
			Name:      "generation_requests_total",
			Help:      "Total number of chat-completion requests",
		},
		[]string{"model", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coursekb",
			Name:      "generation_request_duration_seconds",
			Help:      "Chat-completion request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	StoreRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursekb",
			Name:      "store_requests_total",
			Help:      "Total number of vector store requests",
		},
		[]string{"op", "status"}, // op: "upsert" / "search"
	)

	StorePointsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coursekb",
			Name:      "store_points_dropped_total",
			Help:      "Vector points dropped by pre-upload validation",
		},
	)
)

var remoteMetricsRegistered bool

// RegisterRemoteMetrics registers collaborator metrics. Must be called once from main.
func RegisterRemoteMetrics() {
	if remoteMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationRequestDuration)
	prometheus.MustRegister(StoreRequestsTotal)
	prometheus.MustRegister(StorePointsDroppedTotal)
	remoteMetricsRegistered = true
}
