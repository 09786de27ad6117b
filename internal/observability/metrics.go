package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaksphere_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// FeedPageLatency records feed page reads by filter.
	FeedPageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "breaksphere_feed_page_latency_seconds",
		Help:    "Feed page query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"filter"})

	// FeedPageSize records how many posts each feed page returned.
	FeedPageSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "breaksphere_feed_page_size",
		Help:    "Number of posts returned per feed page",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
	})

	// EdgeToggles counts completed toggles by edge kind and direction.
	EdgeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaksphere_edge_toggles_total",
		Help: "Total number of like/follow toggles by direction",
	}, []string{"kind", "direction"})

	// EdgeConflicts counts toggles that lost a race with a concurrent toggle.
	EdgeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaksphere_edge_conflicts_total",
		Help: "Total number of concurrent toggle conflicts",
	}, []string{"kind"})

	// CacheLookups counts cache-aside reads by key prefix and outcome.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaksphere_cache_lookups_total",
		Help: "Cache-aside lookups by keyspace and result (hit, miss, error)",
	}, []string{"keyspace", "result"})

	// HintsPublished counts stale hints by entity.
	HintsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaksphere_hints_published_total",
		Help: "Total number of stale hints published",
	}, []string{"entity"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breaksphere_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaksphere_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// Direction labels a toggle outcome.
func Direction(added bool) string {
	if added {
		return "added"
	}
	return "removed"
}

// ObserveFeedPage records one feed page read.
func ObserveFeedPage(filter string, start time.Time, size int) {
	FeedPageLatency.WithLabelValues(filter).Observe(time.Since(start).Seconds())
	FeedPageSize.Observe(float64(size))
}
