package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	RecommendationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "melodex",
			Name:      "recommendation_requests_total",
			Help:      "Total number of recommendation requests",
		},
		[]string{"status"}, // "ok" / "fallback" / "error"
	)

	RecommendationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "melodex",
			Name:      "recommendation_duration_seconds",
			Help:      "Recommendation pipeline duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // "score" / "rerank" / "total"
	)

	RerankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "melodex",
			Name:      "rerank_requests_total",
			Help:      "Total number of rerank requests",
		},
		[]string{"status"}, // "success" / "error" / "skipped"
	)

	ProfileUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "melodex",
			Name:      "profile_updates_total",
			Help:      "Total number of profile rebuilds",
		},
		[]string{"status"}, // "success" / "conflict" / "error"
	)

	CatalogCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "melodex",
			Name:      "catalog_cache_total",
			Help:      "Catalog cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecommendationRequestsTotal)
	prometheus.MustRegister(RecommendationDuration)
	prometheus.MustRegister(RerankRequestsTotal)
	prometheus.MustRegister(ProfileUpdatesTotal)
	prometheus.MustRegister(CatalogCacheTotal)
	pipelineMetricsRegistered = true
}
