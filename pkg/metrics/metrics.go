package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesNormalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grid_trades_normalized_total",
		Help: "Raw trade entries seen by the normalizer, by outcome",
	}, []string{"status"})

	GroupsMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grid_groups_matched_total",
		Help: "Total number of (account, instrument, month) groups matched",
	})

	PairsMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grid_pairs_matched_total",
		Help: "Total number of matched buy/sell pairs emitted",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grid_stage_duration_seconds",
		Help:    "Duration of analysis pipeline stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})

	BrokerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_requests_total",
		Help: "Total number of broker API requests",
	}, []string{"endpoint", "status"})

	AnalysisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_requests_total",
		Help: "Total number of analysis requests",
	}, []string{"source", "cached"})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordDatabaseQuery(queryType, status string, duration float64) {
	DatabaseQueries.WithLabelValues(queryType, status).Inc()
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

func RecordTradeNormalized(status string, n int) {
	TradesNormalized.WithLabelValues(status).Add(float64(n))
}

func RecordBrokerRequest(endpoint, status string) {
	BrokerRequests.WithLabelValues(endpoint, status).Inc()
}

func RecordAnalysisRequest(source string, cached bool) {
	cachedStr := "false"
	if cached {
		cachedStr = "true"
	}
	AnalysisRequests.WithLabelValues(source, cachedStr).Inc()
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
